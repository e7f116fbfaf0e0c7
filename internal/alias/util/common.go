package util

import (
	"io"
	"log/slog"
)

// CloseQuietly closes c on a path that already failed; the close error is
// only logged since the caller is returning the original one.
func CloseQuietly(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		slog.Warn("close failed", "what", what, "err", err)
	}
}
