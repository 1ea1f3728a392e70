package safe_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/herald/pkg/utils/safe"
)

func newLoggedContext() (context.Context, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	return ctxlog.With(context.Background(), logger), &buf
}

func TestRun_Success(t *testing.T) {
	ctx, _ := newLoggedContext()

	called := false
	safe.Run(ctx, "noop", func(ctx context.Context) error {
		called = true
		return nil
	})

	gt.True(t, called)
}

func TestRun_ErrorIsSwallowedAndLogged(t *testing.T) {
	ctx, buf := newLoggedContext()

	safe.Run(ctx, "failing", func(ctx context.Context) error {
		return errors.New("inner failure")
	})

	gt.True(t, strings.Contains(buf.String(), "inner failure"))
	gt.True(t, strings.Contains(buf.String(), "failing"))
}

func TestRun_PanicIsRecoveredAndLogged(t *testing.T) {
	ctx, buf := newLoggedContext()

	safe.Run(ctx, "panicking", func(ctx context.Context) error {
		panic("boom")
	})

	gt.True(t, strings.Contains(buf.String(), "boom"))
	gt.True(t, strings.Contains(buf.String(), "panicking"))
}
