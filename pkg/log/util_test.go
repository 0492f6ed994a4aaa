package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func keys(fields []zap.Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Key)
	}
	return out
}

func TestToFields(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		input []any
		keys  []string
	}{
		{name: "empty", input: nil, keys: []string{}},
		{name: "pairs", input: []any{"carID", "car-1", "fixes", 3, "ok", true}, keys: []string{"carID", "fixes", "ok"}},
		{name: "bare error", input: []any{boom, "attempt", 2}, keys: []string{"error", "attempt"}},
		{name: "error value", input: []any{"cause", boom}, keys: []string{"cause"}},
		{name: "zap field", input: []any{zap.String("x", "y"), "n", 1}, keys: []string{"x", "n"}},
		{name: "unpaired value", input: []any{"k", "v", "dangling"}, keys: []string{"k", "arg#2"}},
		{name: "non-string key", input: []any{42, "v"}, keys: []string{"42"}},
		{name: "duration", input: []any{"delay", 30 * time.Second}, keys: []string{"delay"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.input...)
			assert.Equal(t, tt.keys, keys(fields))
		})
	}
}

func TestToFieldsTypes(t *testing.T) {
	fields := toFields("delay", 30*time.Second, "cause", errors.New("boom"), "n", uint64(7))
	assert.Equal(t, zapcore.DurationType, fields[0].Type)
	assert.Equal(t, zapcore.ErrorType, fields[1].Type)
	assert.Equal(t, zapcore.Uint64Type, fields[2].Type)
}
