package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"ingest/internal/errs"
)

// EnvPrefix is prepended to every environment key: INGEST_STORAGE_TABLE.
const EnvPrefix = "INGEST"

// Step names accepted by transform.steps, in execution order.
const (
	StepRequiredFields  = "required_fields"
	StepTimestampFields = "timestamp_fields"
	StepPositiveFields  = "positive_fields"
	StepBoundingBox     = "bounding_box"
)

// AllSteps lists every transform step in execution order.
var AllSteps = []string{StepRequiredFields, StepTimestampFields, StepPositiveFields, StepBoundingBox}

// SetDefaults registers the default of every key. Keys must be known to viper
// for AutomaticEnv to apply to them during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("job", "ingest")

	v.SetDefault("source.path", "")
	v.SetDefault("source.url", "")
	v.SetDefault("source.download_dir", "")
	v.SetDefault("source.cleanup", true)
	v.SetDefault("source.download_timeout", 30*time.Minute)
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.insecure_skip_verify", false)

	v.SetDefault("reader.chunk_size", 100000)
	v.SetDefault("reader.read_ahead", 1)
	v.SetDefault("reader.options", map[string]any{})

	v.SetDefault("transform.steps", []string{})
	v.SetDefault("transform.required_fields", []string{"tpep_pickup_datetime", "tpep_dropoff_datetime"})
	v.SetDefault("transform.timestamp_fields", []string{"tpep_pickup_datetime", "tpep_dropoff_datetime"})
	v.SetDefault("transform.timestamp_layouts", []string{})
	v.SetDefault("transform.positive_fields", []string{"fare_amount", "trip_distance"})
	v.SetDefault("transform.bounding_box.longitude_field", "pickup_longitude")
	v.SetDefault("transform.bounding_box.latitude_field", "pickup_latitude")
	v.SetDefault("transform.bounding_box.min_lon", -75.0)
	v.SetDefault("transform.bounding_box.max_lon", -73.0)
	v.SetDefault("transform.bounding_box.min_lat", 40.0)
	v.SetDefault("transform.bounding_box.max_lat", 41.0)

	v.SetDefault("storage.kind", "postgres")
	v.SetDefault("storage.host", "localhost")
	v.SetDefault("storage.port", 5432)
	v.SetDefault("storage.user", "root")
	v.SetDefault("storage.password", "root")
	v.SetDefault("storage.database", "ny_taxi")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.table", "")
	v.SetDefault("storage.policy", "replace")
	v.SetDefault("storage.types", map[string]string{})
	v.SetDefault("storage.max_retries", 3)
	v.SetDefault("storage.retry_backoff", 500*time.Millisecond)
	v.SetDefault("storage.write_timeout", 5*time.Minute)

	v.SetDefault("run.verify", true)
	v.SetDefault("run.sample_limit", 5)

	v.SetDefault("metrics.backend", "none")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.datadog_addr", "")

	v.SetDefault("log.verbose", false)
	v.SetDefault("log.json", false)
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load merges the optional config file at path into v and decodes the result.
// The file format follows its extension (json, yaml, toml).
func Load(v *viper.Viper, path string) (Pipeline, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Pipeline{}, errs.WrapKind(err, errs.ErrConfig, "read config file %s", path)
		}
	}
	var p Pipeline
	if err := v.Unmarshal(&p); err != nil {
		return Pipeline{}, errs.WrapKind(err, errs.ErrConfig, "decode config")
	}
	if p.Reader.Options == nil {
		p.Reader.Options = Options{}
	}
	return p, nil
}

// Default returns the configuration with every default applied and no
// environment lookups.
func Default() Pipeline {
	v := viper.New()
	SetDefaults(v)
	p, err := Load(v, "")
	if err != nil {
		// Defaults always decode; a failure here is a programming error.
		panic(err)
	}
	return p
}

// StepEnabled reports whether step runs under t.Steps.
func (t Transform) StepEnabled(step string) bool {
	if len(t.Steps) == 0 {
		return true
	}
	for _, s := range t.Steps {
		if strings.EqualFold(strings.TrimSpace(s), step) {
			return true
		}
	}
	return false
}
