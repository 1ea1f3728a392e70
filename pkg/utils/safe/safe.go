package safe

import (
	"context"
	"runtime/debug"

	"github.com/m-mizutani/ctxlog"
)

// Run executes a best-effort side effect: errors and panics are logged and
// discarded, never propagated. Used for secondary actions whose failure must
// not replace the error that triggered them, such as annotating a check run
// after a dispatch failure.
func Run(ctx context.Context, name string, fn func(ctx context.Context) error) {
	logger := ctxlog.From(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in best-effort operation",
				"name", name,
				"recover", r,
				"stack", string(debug.Stack()))
		}
	}()

	if err := fn(ctx); err != nil {
		logger.Warn("best-effort operation failed", "name", name, "error", err)
	}
}
