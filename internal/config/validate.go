package config

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"ingest/internal/ddl"
	"ingest/internal/errs"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "storage.policy").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline performs static validation of p without mutating it.
// Callers decide whether warnings are fatal; Err folds the errors into one.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  "job is empty; metrics will be labeled with an empty job name",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateReader(p.Reader)...)
	issues = append(issues, validateTransform(p.Transform)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRun(p.Run)...)
	issues = append(issues, validateMetrics(p.Metrics)...)

	return issues
}

// Err returns an errs.ErrConfig error listing every error-severity issue, or
// nil when there are none.
func Err(issues []Issue) error {
	var msgs []string
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			msgs = append(msgs, iss.Path+": "+iss.Message)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return errs.Kindf(errs.ErrConfig, "invalid configuration: %s", strings.Join(msgs, "; "))
}

func validateSource(s Source) []Issue {
	var issues []Issue

	hasPath := strings.TrimSpace(s.Path) != ""
	hasURL := strings.TrimSpace(s.URL) != ""
	switch {
	case hasPath && hasURL:
		issues = append(issues, Issue{SeverityError, "source", "exactly one of source.path and source.url must be set, got both"})
	case !hasPath && !hasURL:
		issues = append(issues, Issue{SeverityError, "source", "one of source.path or source.url is required"})
	}

	if hasURL {
		raw := s.URL
		// go-getter forced schemes look like "s3::https://...".
		if i := strings.Index(raw, "::"); i > 0 {
			raw = raw[i+2:]
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" {
			issues = append(issues, Issue{SeverityError, "source.url", fmt.Sprintf("source.url %q is not an absolute URL", s.URL)})
		}
	}
	if s.DownloadTimeout < 0 {
		issues = append(issues, Issue{SeverityError, "source.download_timeout", "must not be negative"})
	}
	if s.MaxRetries < 0 {
		issues = append(issues, Issue{SeverityError, "source.max_retries", "must not be negative"})
	}
	if s.InsecureSkipVerify {
		issues = append(issues, Issue{SeverityWarning, "source.insecure_skip_verify", "TLS verification is disabled for downloads"})
	}
	return issues
}

func validateReader(r Reader) []Issue {
	var issues []Issue

	if r.ChunkSize <= 0 {
		issues = append(issues, Issue{SeverityError, "reader.chunk_size", fmt.Sprintf("must be > 0, got %d", r.ChunkSize)})
	}
	if r.ReadAhead < 0 || r.ReadAhead > 1 {
		issues = append(issues, Issue{SeverityError, "reader.read_ahead", fmt.Sprintf("must be 0 or 1, got %d", r.ReadAhead)})
	}
	if enc := r.Options.String("encoding", ""); enc != "" {
		if _, err := htmlindex.Get(enc); err != nil {
			issues = append(issues, Issue{SeverityError, "reader.options.encoding", fmt.Sprintf("unknown encoding %q", enc)})
		}
	}
	if c := r.Options.String("comma", ""); len([]rune(c)) > 1 && c != `\t` {
		issues = append(issues, Issue{SeverityError, "reader.options.comma", fmt.Sprintf("delimiter must be a single character, got %q", c)})
	}
	return issues
}

func validateTransform(t Transform) []Issue {
	var issues []Issue

	known := map[string]struct{}{}
	for _, s := range AllSteps {
		known[s] = struct{}{}
	}
	for i, s := range t.Steps {
		if _, ok := known[strings.ToLower(strings.TrimSpace(s))]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("transform.steps[%d]", i),
				Message:  fmt.Sprintf("unknown step %q; expected one of %s", s, strings.Join(AllSteps, ", ")),
			})
		}
	}

	if t.StepEnabled(StepBoundingBox) {
		b := t.BoundingBox
		if b.MinLon > b.MaxLon {
			issues = append(issues, Issue{SeverityError, "transform.bounding_box", "min_lon is greater than max_lon"})
		}
		if b.MinLat > b.MaxLat {
			issues = append(issues, Issue{SeverityError, "transform.bounding_box", "min_lat is greater than max_lat"})
		}
	}
	if t.StepEnabled(StepTimestampFields) && len(t.TimestampFields) == 0 {
		issues = append(issues, Issue{SeverityWarning, "transform.timestamp_fields", "no timestamp fields configured; values stay text"})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{SeverityError, "storage.kind", "storage.kind must not be empty"})
	} else {
		known := map[string]struct{}{"postgres": {}, "mysql": {}, "mssql": {}, "sqlite": {}}
		if _, ok := known[s.Kind]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "storage.kind",
				Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
			})
		}
	}

	if strings.TrimSpace(s.Table) == "" {
		issues = append(issues, Issue{SeverityError, "storage.table", "destination table must not be empty"})
	}
	switch strings.ToLower(s.Policy) {
	case "replace", "append", "fail":
	default:
		issues = append(issues, Issue{SeverityError, "storage.policy", fmt.Sprintf("policy %q must be one of replace, append, fail", s.Policy)})
	}
	for col, kind := range s.Types {
		if _, err := ddl.ParseKind(kind); err != nil {
			issues = append(issues, Issue{SeverityError, "storage.types." + col, err.Error()})
		}
	}
	if s.DSN == "" && s.Kind != "sqlite" && strings.TrimSpace(s.Host) == "" {
		issues = append(issues, Issue{SeverityError, "storage.host", "host is required when storage.dsn is empty"})
	}
	if s.MaxRetries < 0 {
		issues = append(issues, Issue{SeverityError, "storage.max_retries", "must not be negative"})
	}
	if s.WriteTimeout <= 0 {
		issues = append(issues, Issue{SeverityError, "storage.write_timeout", "must be > 0"})
	}
	return issues
}

func validateRun(r Run) []Issue {
	if r.SampleLimit < 0 {
		return []Issue{{SeverityError, "run.sample_limit", "must not be negative"}}
	}
	return nil
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if m.PushgatewayURL == "" {
			return []Issue{{SeverityError, "metrics.pushgateway_url", "pushgateway backend requires a URL"}}
		}
	case "datadog":
	default:
		return []Issue{{SeverityError, "metrics.backend", fmt.Sprintf("unknown metrics backend %q", m.Backend)}}
	}
	return nil
}
