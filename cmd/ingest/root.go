package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"ingest/internal/config"
	"ingest/internal/errs"
	"ingest/internal/logging"
)

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "ingest",
		Short: "Load delimited text files into a relational table in chunks.",
		Long: `ingest downloads (or opens) a CSV file, cleans it chunk by chunk and
appends every chunk to a table in PostgreSQL, MySQL, SQL Server or SQLite.

Configuration is read from, in increasing order of precedence: built-in
defaults, the file given with --config (JSON, YAML or TOML), INGEST_*
environment variables (INGEST_STORAGE_TABLE for storage.table) and flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rc.PersistentFlags().StringP("config", "c", "", "configuration file to read from")
	rc.PersistentFlags().BoolP("verbose", "v", false, "enable debug logs")
	rc.PersistentFlags().Bool("log-json", false, "write logs as JSON")

	rc.AddCommand(newRunCommand(stdout, stderr))
	rc.AddCommand(newValidateCommand(stdout, stderr))
	rc.AddCommand(newVerifyCommand(stdout, stderr))
	rc.AddCommand(newProbeCommand(stdout, stderr))
	rc.AddCommand(newBackendsCommand(stdout))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// flagKeys maps flag names to configuration keys. Flags not listed here are
// handled by the commands themselves.
var flagKeys = map[string]string{
	"verbose":  "log.verbose",
	"log-json": "log.json",
	"job":      "job",

	"path":                 "source.path",
	"url":                  "source.url",
	"download-dir":         "source.download_dir",
	"download-timeout":     "source.download_timeout",
	"insecure-skip-verify": "source.insecure_skip_verify",

	"chunk-size": "reader.chunk_size",
	"read-ahead": "reader.read_ahead",

	"storage":       "storage.kind",
	"host":          "storage.host",
	"port":          "storage.port",
	"user":          "storage.user",
	"password":      "storage.password",
	"db":            "storage.database",
	"dsn":           "storage.dsn",
	"table":         "storage.table",
	"policy":        "storage.policy",
	"max-retries":   "storage.max_retries",
	"write-timeout": "storage.write_timeout",

	"sample-limit": "run.sample_limit",

	"metrics-backend": "metrics.backend",
	"pushgateway-url": "metrics.pushgateway_url",
	"datadog-addr":    "metrics.datadog_addr",
}

// addSourceFlags registers the flags shared by commands that read a source.
func addSourceFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String("job", d.Job, "job name used in logs and metrics")
	fs.String("path", "", "local source file")
	fs.String("url", "", "remote source URL")
	fs.String("download-dir", "", "directory for downloaded files (default: OS temp dir)")
	fs.Duration("download-timeout", d.Source.DownloadTimeout, "download deadline")
	fs.Bool("insecure-skip-verify", false, "skip TLS verification for downloads")
	fs.Bool("no-cleanup", false, "keep the downloaded file after the run")
	fs.Int("chunk-size", d.Reader.ChunkSize, "rows per chunk")
	fs.Int("read-ahead", d.Reader.ReadAhead, "chunks decoded ahead of the writer (0 or 1)")
	fs.String("policy", d.Storage.Policy, "existing table policy: replace, append or fail")
	fs.Int("max-retries", d.Storage.MaxRetries, "retries of a failed chunk write")
	fs.Duration("write-timeout", d.Storage.WriteTimeout, "deadline of one chunk write")
	fs.String("metrics-backend", d.Metrics.Backend, "metrics backend: none, pushgateway or datadog")
	fs.String("pushgateway-url", "", "Prometheus Pushgateway base URL")
	fs.String("datadog-addr", "", "DogStatsD address (default 127.0.0.1:8125)")
}

// addStorageFlags registers the destination flags.
func addStorageFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String("storage", d.Storage.Kind, "storage backend: postgres, mysql, mssql or sqlite")
	fs.String("host", d.Storage.Host, "database host")
	fs.Int("port", d.Storage.Port, "database port")
	fs.String("user", d.Storage.User, "database user")
	fs.String("password", d.Storage.Password, "database password")
	fs.String("db", d.Storage.Database, "database name")
	fs.String("dsn", "", "connection string; overrides host, port, user, password and db")
	fs.String("table", "", "destination table")
	fs.Int("sample-limit", d.Run.SampleLimit, "rows shown by the verification read-back")
}

// loadConfig merges defaults, the config file, the environment and the flags
// of cmd into a Pipeline.
func loadConfig(cmd *cobra.Command) (config.Pipeline, error) {
	v := config.NewViper()
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return config.Pipeline{}, err
	}
	path, _ := cmd.Flags().GetString("config")
	p, err := config.Load(v, path)
	if err != nil {
		return config.Pipeline{}, err
	}
	if off, _ := cmd.Flags().GetBool("no-cleanup"); off {
		p.Source.Cleanup = false
	}
	if off, _ := cmd.Flags().GetBool("no-verify"); off {
		p.Run.Verify = false
	}
	return p, nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		if e := v.BindPFlag(key, f); e != nil {
			err = errs.Wrapf(e, "bind flag --%s", f.Name)
		}
	})
	return err
}

func newLogger(cmd *cobra.Command, p config.Pipeline) (*zap.SugaredLogger, error) {
	return logging.New(logging.Options{
		JSON:    p.Log.JSON,
		Verbose: p.Log.Verbose,
		Output:  cmd.ErrOrStderr(),
	})
}

// printIssues writes every validation issue to w and reports whether any of
// them is an error.
func printIssues(w io.Writer, issues []config.Issue) bool {
	failed := false
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			failed = true
		}
	}
	return failed
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
