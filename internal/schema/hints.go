package schema

import (
	"ingest/internal/config"
	"ingest/internal/ddl"
	"ingest/internal/errs"
)

// HintsFrom builds inference hints from the storage type overrides and the
// enabled transform steps of p.
func HintsFrom(p config.Pipeline) (Hints, error) {
	h := Hints{Overrides: make(map[string]ddl.Kind, len(p.Storage.Types))}
	for col, name := range p.Storage.Types {
		kind, err := ddl.ParseKind(name)
		if err != nil {
			return Hints{}, errs.Wrapf(err, "storage.types.%s", col)
		}
		h.Overrides[col] = kind
	}
	if p.Transform.StepEnabled(config.StepTimestampFields) {
		h.TimestampFields = p.Transform.TimestampFields
	}
	if p.Transform.StepEnabled(config.StepPositiveFields) {
		h.PositiveFields = p.Transform.PositiveFields
	}
	return h, nil
}
