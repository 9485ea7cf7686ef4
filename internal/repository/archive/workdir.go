package archive

import (
	"context"
	"fmt"
	"os"

	"github.com/oshokin/nuget-promoter/internal/domain/nupkg"
	"github.com/oshokin/nuget-promoter/internal/logger"
)

// AcquireWorkDir creates a fresh, uniquely named directory under the system
// temp dir. The returned release func removes it and must be deferred by the
// caller right away; calling it more than once is harmless.
func AcquireWorkDir(ctx context.Context, prefix string) (string, func(), error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return "", func() {}, fmt.Errorf("create working directory: %w: %w", nupkg.ErrIO, err)
	}

	release := func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.WarnKV(ctx, "Unable to remove working directory", "path", dir, "error", err)
			return
		}

		logger.DebugKV(ctx, "Working directory removed", "path", dir)
	}

	return dir, release, nil
}
