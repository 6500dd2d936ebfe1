// Package config defines the configuration model for an ingestion run.
//
// Values are loaded by Load from (lowest to highest precedence) built-in
// defaults, an optional config file, INGEST_* environment variables and CLI
// flags. Field names mirror the dotted keys ("storage.table",
// "reader.chunk_size") so the same shape works in JSON, YAML and TOML files:
//
//	source:
//	  url: https://example.com/yellow_tripdata_2021-01.csv.gz
//	reader:
//	  chunk_size: 100000
//	storage:
//	  kind: postgres
//	  table: yellow_taxi_data
package config

import (
	"encoding/json"
	"time"
)

// Pipeline is the top-level configuration of one run.
type Pipeline struct {
	// Job labels metrics and log lines. Defaults to "ingest".
	Job string `mapstructure:"job" json:"job"`

	Source    Source    `mapstructure:"source" json:"source"`
	Reader    Reader    `mapstructure:"reader" json:"reader"`
	Transform Transform `mapstructure:"transform" json:"transform"`
	Storage   Storage   `mapstructure:"storage" json:"storage"`
	Run       Run       `mapstructure:"run" json:"run"`
	Metrics   Metrics   `mapstructure:"metrics" json:"metrics"`
	Log       Log       `mapstructure:"log" json:"log"`
}

// Source identifies the input. Exactly one of Path and URL must be set.
type Source struct {
	Path string `mapstructure:"path" json:"path"`
	URL  string `mapstructure:"url" json:"url"`

	// DownloadDir receives remote files. Empty means the OS temp dir.
	DownloadDir string `mapstructure:"download_dir" json:"download_dir"`
	// Cleanup removes a downloaded file once the run ends.
	Cleanup         bool          `mapstructure:"cleanup" json:"cleanup"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout" json:"download_timeout"`
	MaxRetries      int           `mapstructure:"max_retries" json:"max_retries"`
	// InsecureSkipVerify disables TLS verification for HTTPS downloads.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" json:"insecure_skip_verify"`
}

// Reader configures chunked decoding.
type Reader struct {
	ChunkSize int `mapstructure:"chunk_size" json:"chunk_size"`
	// ReadAhead is the number of batches decoded ahead of the writer (0 or 1).
	ReadAhead int `mapstructure:"read_ahead" json:"read_ahead"`

	// Options is interpreted by the CSV reader. Keys:
	//   comma (string), encoding (string), lazy_quotes (bool),
	//   trim_space (bool), normalize_headers (bool)
	Options Options `mapstructure:"options" json:"options"`
}

// Transform configures the per-batch cleaning steps.
type Transform struct {
	// Steps enables steps by name, in fixed order. Empty means all steps.
	Steps            []string    `mapstructure:"steps" json:"steps"`
	RequiredFields   []string    `mapstructure:"required_fields" json:"required_fields"`
	TimestampFields  []string    `mapstructure:"timestamp_fields" json:"timestamp_fields"`
	TimestampLayouts []string    `mapstructure:"timestamp_layouts" json:"timestamp_layouts"`
	PositiveFields   []string    `mapstructure:"positive_fields" json:"positive_fields"`
	BoundingBox      BoundingBox `mapstructure:"bounding_box" json:"bounding_box"`
}

// BoundingBox is an inclusive geographic filter on two coordinate columns.
type BoundingBox struct {
	LongitudeField string  `mapstructure:"longitude_field" json:"longitude_field"`
	LatitudeField  string  `mapstructure:"latitude_field" json:"latitude_field"`
	MinLon         float64 `mapstructure:"min_lon" json:"min_lon"`
	MaxLon         float64 `mapstructure:"max_lon" json:"max_lon"`
	MinLat         float64 `mapstructure:"min_lat" json:"min_lat"`
	MaxLat         float64 `mapstructure:"max_lat" json:"max_lat"`
}

// Storage selects and configures the destination store.
type Storage struct {
	// Kind selects the backend: postgres, sqlite, mysql, mssql.
	Kind string `mapstructure:"kind" json:"kind"`

	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	Database string `mapstructure:"database" json:"database"`
	// DSN overrides the connection parts above when set.
	DSN string `mapstructure:"dsn" json:"dsn"`

	// Table is the destination relation, optionally schema qualified.
	Table string `mapstructure:"table" json:"table"`
	// Policy is one of replace, append, fail.
	Policy string `mapstructure:"policy" json:"policy"`
	// Types forces a column kind (text, integer, float, timestamp).
	Types map[string]string `mapstructure:"types" json:"types"`

	MaxRetries   int           `mapstructure:"max_retries" json:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" json:"retry_backoff"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
}

// Run holds post-run behaviour.
type Run struct {
	Verify      bool `mapstructure:"verify" json:"verify"`
	SampleLimit int  `mapstructure:"sample_limit" json:"sample_limit"`
}

// Metrics selects the metrics backend: none, pushgateway, datadog.
type Metrics struct {
	Backend        string `mapstructure:"backend" json:"backend"`
	PushgatewayURL string `mapstructure:"pushgateway_url" json:"pushgateway_url"`
	DatadogAddr    string `mapstructure:"datadog_addr" json:"datadog_addr"`
}

// Log configures the zap logger.
type Log struct {
	Verbose bool `mapstructure:"verbose" json:"verbose"`
	JSON    bool `mapstructure:"json" json:"json"`
}

// Remote reports whether the source must be downloaded.
func (s Source) Remote() bool { return s.URL != "" }

// Options is a small helper to fetch typed values from free-form maps. It
// performs minimal coercion and returns the default when a key is absent or
// of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def. Environment and flag values
// arrive as strings, so "true"/"false" are accepted too.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			switch b {
			case "true", "1", "yes":
				return true
			case "false", "0", "no":
				return false
			}
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			if s == `\t` {
				return '\t'
			}
			return []rune(s)[0]
		}
	}
	return def
}

// StringSlice returns a []string for key, or nil.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// UnmarshalJSON makes a missing or null options object decode to an empty,
// non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
