package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingest/internal/errs"
)

func validPipeline() Pipeline {
	p := Default()
	p.Source.Path = "testdata/trips.csv"
	p.Storage.Table = "yellow_taxi_data"
	return p
}

func hasIssue(issues []Issue, sev IssueSeverity, path string) bool {
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path {
			return true
		}
	}
	return false
}

func TestValidatePipeline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Pipeline)
		sev    IssueSeverity
		path   string
	}{
		{"both sources", func(p *Pipeline) { p.Source.URL = "https://x/y.csv" }, SeverityError, "source"},
		{"no source", func(p *Pipeline) { p.Source.Path = "" }, SeverityError, "source"},
		{"relative url", func(p *Pipeline) { p.Source.Path = ""; p.Source.URL = "y.csv" }, SeverityError, "source.url"},
		{"zero chunk size", func(p *Pipeline) { p.Reader.ChunkSize = 0 }, SeverityError, "reader.chunk_size"},
		{"read ahead too deep", func(p *Pipeline) { p.Reader.ReadAhead = 4 }, SeverityError, "reader.read_ahead"},
		{"unknown encoding", func(p *Pipeline) { p.Reader.Options = Options{"encoding": "klingon"} }, SeverityError, "reader.options.encoding"},
		{"unknown step", func(p *Pipeline) { p.Transform.Steps = []string{"dedupe"} }, SeverityError, "transform.steps[0]"},
		{"inverted box", func(p *Pipeline) { p.Transform.BoundingBox.MinLat = 42 }, SeverityError, "transform.bounding_box"},
		{"missing table", func(p *Pipeline) { p.Storage.Table = " " }, SeverityError, "storage.table"},
		{"bad policy", func(p *Pipeline) { p.Storage.Policy = "upsert" }, SeverityError, "storage.policy"},
		{"bad type override", func(p *Pipeline) { p.Storage.Types = map[string]string{"a": "blob"} }, SeverityError, "storage.types.a"},
		{"unknown kind warns", func(p *Pipeline) { p.Storage.Kind = "oracle" }, SeverityWarning, "storage.kind"},
		{"pushgateway without url", func(p *Pipeline) { p.Metrics.Backend = "pushgateway" }, SeverityError, "metrics.pushgateway_url"},
		{"empty job warns", func(p *Pipeline) { p.Job = "" }, SeverityWarning, "job"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validPipeline()
			tt.mutate(&p)
			issues := ValidatePipeline(p)
			assert.True(t, hasIssue(issues, tt.sev, tt.path), "want %s at %s, got %v", tt.sev, tt.path, issues)
		})
	}
}

func TestValidatePipeline_Valid(t *testing.T) {
	t.Parallel()

	issues := ValidatePipeline(validPipeline())
	require.NoError(t, Err(issues))
}

func TestErr_FoldsErrorsOnly(t *testing.T) {
	t.Parallel()

	issues := []Issue{
		{SeverityWarning, "job", "empty"},
		{SeverityError, "storage.table", "missing"},
	}
	err := Err(issues)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrConfig))
	assert.Contains(t, err.Error(), "storage.table: missing")
	assert.NotContains(t, err.Error(), "job")
	assert.Equal(t, "error at storage.table: missing", issues[1].Error())
}
