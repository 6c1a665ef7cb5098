package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 40*time.Millisecond)

	ctx, cancel = WithTimeout(context.Background(), 0)
	defer cancel()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}

func captureLogger(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})), &buf
}

func TestLogQuery(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		err      error
		wantMsg  string
	}{
		{"fast query", time.Millisecond, nil, "msg=query"},
		{"slow query", 4 * time.Second, nil, `msg="slow query"`},
		{"failed query", time.Millisecond, errors.New("syntax error"), `msg="query error"`},
		{"no rows is not an error", time.Millisecond, pgx.ErrNoRows, "msg=query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := captureLogger(slog.LevelDebug)
			logQuery(log, "SELECT 1", tt.duration, tt.err)
			assert.Contains(t, buf.String(), tt.wantMsg)
		})
	}
}

func TestQueryTracer(t *testing.T) {
	log, buf := captureLogger(slog.LevelDebug)
	tr := &queryTracer{log: log}

	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT $1", Args: []any{"secret-ip"}})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

	assert.Contains(t, buf.String(), "SELECT $1")
	assert.NotContains(t, buf.String(), "secret-ip")
}
