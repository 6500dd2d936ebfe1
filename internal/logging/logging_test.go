package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		opts      Options
		debugSeen bool
	}{
		{name: "console info", opts: Options{}},
		{name: "console verbose", opts: Options{Verbose: true}, debugSeen: true},
		{name: "json", opts: Options{JSON: true}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			tt.opts.Output = &buf
			log, err := New(tt.opts)
			require.NoError(t, err)

			log.Debugw("pipeline: debug line")
			log.Infow("pipeline: chunk written", "chunk", 1)
			_ = log.Sync()

			out := buf.String()
			assert.Contains(t, out, "chunk written")
			assert.Equal(t, tt.debugSeen, bytes.Contains(buf.Bytes(), []byte("debug line")))
			if tt.opts.JSON {
				var m map[string]any
				require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m))
				assert.EqualValues(t, 1, m["chunk"])
			}
		})
	}
}

func TestNop(t *testing.T) {
	t.Parallel()
	assert.NotNil(t, Nop())
	Nop().Infow("discarded")
}
