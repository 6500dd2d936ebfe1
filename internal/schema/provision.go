package schema

import (
	"context"
	"sort"
	"strings"

	"ingest/internal/ddl"
	"ingest/internal/errs"
	"ingest/internal/record"
)

// Policy decides what happens when the destination relation already exists.
type Policy string

const (
	// PolicyReplace drops and recreates the relation.
	PolicyReplace Policy = "replace"
	// PolicyAppend keeps the relation when its columns match the source.
	PolicyAppend Policy = "append"
	// PolicyFail refuses to touch an existing relation.
	PolicyFail Policy = "fail"
)

// ParsePolicy accepts replace, append or fail (case-insensitive).
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyReplace, PolicyAppend, PolicyFail:
		return p, nil
	}
	return "", errs.Kindf(errs.ErrConfig, "unknown existence policy %q", s)
}

// Structure is the part of a store the provisioner needs.
type Structure interface {
	RelationExists(ctx context.Context, name string) (bool, error)
	Columns(ctx context.Context, name string) ([]string, error)
	CreateOrReplaceStructure(ctx context.Context, def ddl.TableDef) error
}

// Provisioner prepares the destination relation before the first write.
type Provisioner struct {
	store Structure
	hints Hints
}

// NewProvisioner returns a Provisioner backed by store.
func NewProvisioner(store Structure, hints Hints) *Provisioner {
	return &Provisioner{store: store, hints: hints}
}

// Provision ensures relation exists with a structure derived from first and
// returns that structure. It creates structure only; no rows are written.
//
//   - replace: any existing relation is dropped and recreated.
//   - append: an existing relation must have the same column set
//     (case-insensitive, order ignored) or errs.ErrSchemaMismatch is returned.
//   - fail: an existing relation is errs.ErrRelationExists.
//
// Running Provision twice with replace leaves the same structure.
func (p *Provisioner) Provision(ctx context.Context, first record.Batch, relation string, policy Policy) (ddl.TableDef, error) {
	if strings.TrimSpace(relation) == "" {
		return ddl.TableDef{}, errs.Kindf(errs.ErrConfig, "destination relation must not be empty")
	}
	def := InferTableDef(relation, first, p.hints)

	switch policy {
	case PolicyReplace:
		if err := p.store.CreateOrReplaceStructure(ctx, def); err != nil {
			return ddl.TableDef{}, errs.Wrapf(err, "replace %s", relation)
		}
		return def, nil

	case PolicyAppend, PolicyFail:
		exists, err := p.store.RelationExists(ctx, relation)
		if err != nil {
			return ddl.TableDef{}, errs.Wrapf(err, "check %s", relation)
		}
		if !exists {
			if err := p.store.CreateOrReplaceStructure(ctx, def); err != nil {
				return ddl.TableDef{}, errs.Wrapf(err, "create %s", relation)
			}
			return def, nil
		}
		if policy == PolicyFail {
			return ddl.TableDef{}, errs.Kindf(errs.ErrRelationExists, "relation %s already exists", relation)
		}
		have, err := p.store.Columns(ctx, relation)
		if err != nil {
			return ddl.TableDef{}, errs.Wrapf(err, "read columns of %s", relation)
		}
		if missing, extra := diff(first.Columns, have); len(missing)+len(extra) > 0 {
			return ddl.TableDef{}, errs.Hint(
				errs.Kindf(errs.ErrSchemaMismatch,
					"relation %s does not match the source columns: source-only %v, relation-only %v",
					relation, missing, extra),
				"use the replace policy to recreate the relation",
			)
		}
		return def, nil
	}
	return ddl.TableDef{}, errs.Kindf(errs.ErrConfig, "unknown existence policy %q", policy)
}

// diff compares column sets case-insensitively and returns the names only
// in want (missing from have) and only in have.
func diff(want, have []string) (missing, extra []string) {
	w := make(map[string]string, len(want))
	for _, c := range want {
		w[strings.ToLower(c)] = c
	}
	h := make(map[string]string, len(have))
	for _, c := range have {
		h[strings.ToLower(c)] = c
	}
	for k, c := range w {
		if _, ok := h[k]; !ok {
			missing = append(missing, c)
		}
	}
	for k, c := range h {
		if _, ok := w[k]; !ok {
			extra = append(extra, c)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}
