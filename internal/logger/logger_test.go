package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNoopLogger(t *testing.T) {
	l := &NoopLogger{}
	assert.NotPanics(t, func() {
		l.Debug("query executed", "sql", "SELECT 1")
		l.Info("booking cancelled", "booking_id", 1)
		l.Warn("slow eager load", "relation", "tables")
		l.Error("query execution failed")
	})
}

func TestSlogAdapter(t *testing.T) {
	tests := []struct {
		name  string
		log   func(Logger)
		level string
		want  []string
	}{
		{
			name:  "debug",
			log:   func(l Logger) { l.Debug("query executed", "entity", "booking") },
			level: "level=DEBUG",
			want:  []string{`msg="query executed"`, "entity=booking"},
		},
		{
			name:  "info",
			log:   func(l Logger) { l.Info("tables assigned", "booking_id", 2, "attached", []string{"1", "4"}) },
			level: "level=INFO",
			want:  []string{`msg="tables assigned"`, "booking_id=2", "attached=\"[1 4]\""},
		},
		{
			name:  "warn",
			log:   func(l Logger) { l.Warn("health check failed", "latency", "5s") },
			level: "level=WARN",
			want:  []string{"latency=5s"},
		},
		{
			name:  "error",
			log:   func(l Logger) { l.Error("query execution failed", "error", "no such table: wp_fson_bookings") },
			level: "level=ERROR",
			want:  []string{`error="no such table: wp_fson_bookings"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

			tt.log(l)

			out := buf.String()
			assert.Contains(t, out, tt.level)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestSlogAdapterJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slogger := slog.New(handler)
	logger := NewSlogAdapter(slogger)

	logger.Info("query executed",
		"sql", "SELECT * FROM bookings WHERE id = ?",
		"duration_ms", 15,
		"rows", 1)

	output := buf.String()
	assert.Contains(t, output, `"msg":"query executed"`)
	assert.Contains(t, output, `"sql":"SELECT * FROM bookings WHERE id = ?"`)
	assert.Contains(t, output, `"duration_ms":15`)
	assert.Contains(t, output, `"rows":1`)
}

func TestZapAdapter(t *testing.T) {
	var buf bytes.Buffer
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.DebugLevel)
	logger := NewZapAdapter(zap.New(core))

	logger.Info("query executed", "sql", "SELECT 1", "rows", 1)
	logger.Error("query execution failed", "error", "boom")
	require.NoError(t, logger.Sync())

	output := buf.String()
	assert.Contains(t, output, `"msg":"query executed"`)
	assert.Contains(t, output, `"sql":"SELECT 1"`)
	assert.Contains(t, output, `"rows":1`)
	assert.Contains(t, output, `"level":"error"`)
}

func TestNew(t *testing.T) {
	tests := []struct {
		format  string
		level   string
		want    any
		wantErr bool
	}{
		{"", "info", &NoopLogger{}, false},
		{"none", "info", &NoopLogger{}, false},
		{"text", "debug", &SlogAdapter{}, false},
		{"json", "warn", &SlogAdapter{}, false},
		{"zap", "error", &ZapAdapter{}, false},
		{"zap", "loud", nil, true},
		{"text", "loud", nil, true},
		{"xml", "info", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := New(tt.format, tt.level, &buf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, l)
		})
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("json", "warn", &buf)
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
