package utils

import (
	"io"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/logger"
)

// Close closes c and ignores any error.
// Use for response bodies and other best-effort cleanup.
func Close(c io.Closer) {
	_ = c.Close()
}

// CloseLogged closes c and logs a failure at warn level.
func CloseLogged(c io.Closer, log logger.Logger, what string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("failed to close "+what, logger.Error(err))
	}
}
