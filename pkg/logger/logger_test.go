package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestDetectEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	assert.Equal(t, EnvDev, DetectEnv())

	t.Setenv("APP_ENV", "Staging")
	assert.Equal(t, EnvStage, DetectEnv())

	t.Setenv("APP_ENV", "production")
	assert.Equal(t, EnvProd, DetectEnv())
}

func TestInit_DevStd_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	l := Init(Config{
		Service: "demo",
		Version: "v0.0.1",
		Env:     EnvDev,
		Backend: BackendStd,
		Level:   slog.LevelDebug,
		Output:  &buf,
	})

	l.Info("Hello world")
	out := buf.String()

	assert.False(t, strings.HasPrefix(strings.TrimSpace(out), "{"), "expected text output, got %s", out)
	assert.Contains(t, out, "Hello world")
	assert.Contains(t, out, "service=demo")
	assert.Contains(t, out, "env=dev")
}

func TestInit_ProdStd_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := Init(Config{Service: "demo", Env: EnvProd, Backend: BackendStd, Output: &buf})

	l.Info("booted")

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), buf.String())
	assert.Equal(t, "booted", m["msg"])
	assert.Equal(t, "prod", m["env"])
}

func TestInit_ProdZap_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := Init(Config{
		Service:          "demo",
		Version:          "1.2.3",
		Env:              EnvProd,
		Backend:          BackendZap,
		Level:            slog.LevelInfo,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		Output:           &buf,
	})

	l.Info("booted", slog.String("k", "v"))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), buf.String())
	assert.Equal(t, "booted", m["msg"])
	assert.Equal(t, "demo", m["service"])
	assert.Equal(t, "prod", m["env"])
	assert.Equal(t, "1.2.3", m["version"])
	assert.Equal(t, "INFO", m["level"])
	assert.Equal(t, "v", m["k"])
}

func TestAttrsFromCtx(t *testing.T) {
	assert.Nil(t, AttrsFromCtx(context.Background()))

	tid, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	sid, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: tid,
		SpanID:  sid,
	}))

	attrs := AttrsFromCtx(ctx)
	require.Len(t, attrs, 2)
	assert.Equal(t, "trace_id", attrs[0].Key)
	assert.Equal(t, tid.String(), attrs[0].Value.String())
	assert.Equal(t, "span_id", attrs[1].Key)

	ctx = WithParticipant(WithRequestID(ctx, "req-1"), "p-1")
	attrs = AttrsFromCtx(ctx)
	require.Len(t, attrs, 4)
	assert.Equal(t, "req_id", attrs[0].Key)
	assert.Equal(t, "participant", attrs[1].Key)
	assert.Equal(t, "p-1", attrs[1].Value.String())
}

func TestInit_ContextAttrsReachOutput(t *testing.T) {
	var buf bytes.Buffer
	l := Init(Config{Service: "demo", Env: EnvProd, Backend: BackendStd, Output: &buf})

	ctx := WithParticipant(WithRequestID(context.Background(), "req-7"), "p-9")
	l.With("component", "test").InfoContext(ctx, "matched")

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), buf.String())
	assert.Equal(t, "req-7", m["req_id"])
	assert.Equal(t, "p-9", m["participant"])
	assert.Equal(t, "test", m["component"])
}
