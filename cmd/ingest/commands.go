package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"ingest/internal/config"
	"ingest/internal/errs"
	"ingest/internal/pipeline"
	"ingest/internal/storage"
)

func newValidateCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			issues := config.ValidatePipeline(p)
			kind := strings.ToLower(strings.TrimSpace(p.Storage.Kind))
			if kind != "" && !slices.Contains(storage.ListKinds(), kind) {
				issues = append(issues, config.Issue{
					Severity: config.SeverityError,
					Path:     "storage.kind",
					Message:  fmt.Sprintf("no backend registered for %q (have %s)", kind, strings.Join(storage.ListKinds(), ", ")),
				})
			}
			if printIssues(stderr, issues) {
				return errs.Kindf(errs.ErrConfig, "configuration is invalid")
			}
			fmt.Fprintln(stdout, "configuration is valid")
			return nil
		},
	}
	addSourceFlags(cmd.Flags())
	addStorageFlags(cmd.Flags())
	return cmd
}

func newVerifyCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Show the row count and a sample of the destination table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if strings.TrimSpace(p.Storage.Table) == "" {
				return errs.Kindf(errs.ErrConfig, "--table is required")
			}
			log, err := newLogger(cmd, p)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			scfg := storage.ConfigFrom(p.Storage)
			store, err := storage.New(cmd.Context(), scfg)
			if err != nil {
				return err
			}
			defer store.Close()
			log.Debugw("verify: connected", "storage", scfg.String())

			v, err := pipeline.Verify(cmd.Context(), store, p.Storage.Table, p.Run.SampleLimit)
			if err != nil {
				return err
			}
			return writeVerification(stdout, v)
		},
	}
	addStorageFlags(cmd.Flags())
	return cmd
}

func newBackendsCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the registered storage backends",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range storage.ListKinds() {
				fmt.Fprintln(stdout, k)
			}
		},
	}
}
