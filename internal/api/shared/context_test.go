package shared

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetTraceID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	traced := SetTraceID(ctx)
	traceID := GetTraceID(traced)
	assert.Len(t, traceID, 32, "trace ID is 16 random bytes in hex")
	assert.Empty(t, GetTraceID(ctx), "original context is unchanged")

	assert.Equal(t, "abcdef0123456789", GetTraceID(WithTraceID(ctx, "abcdef0123456789")))
}

func TestGetTraceIDWithInvalidContext(t *testing.T) {
	t.Parallel()

	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}

func TestValidTraceID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		traceID string
		want    bool
	}{
		{name: "generated", traceID: generateTraceID(), want: true},
		{name: "short hex", traceID: "deadbeef", want: true},
		{name: "empty", traceID: "", want: false},
		{name: "too short", traceID: "abc123", want: false},
		{name: "too long", traceID: strings.Repeat("ab", 33), want: false},
		{name: "odd length", traceID: "abcdef012", want: false},
		{name: "not hex", traceID: "trace-id-from-client", want: false},
		{name: "log injection", traceID: "abcd\nlevel=ERROR", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ValidTraceID(tt.traceID))
		})
	}
}

func TestGenerateTraceID_Unique(t *testing.T) {
	t.Parallel()

	const iterations = 1000
	seen := make(map[string]bool, iterations)
	for i := 0; i < iterations; i++ {
		id := generateTraceID()
		_, err := hex.DecodeString(id)
		require.NoError(t, err)
		assert.False(t, seen[id], "trace IDs must not repeat")
		seen[id] = true
	}
}

func TestGenerateFallbackTraceID(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id := generateFallbackTraceID()
		assert.Len(t, id, 32)
		_, err := hex.DecodeString(id)
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
		time.Sleep(time.Millisecond)
	}
}
