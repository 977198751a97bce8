package server

import "time"

// HTTP server constants
const (
	// HTTP timeouts
	HTTPReadTimeout  = 15 * time.Second
	HTTPWriteTimeout = 60 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// Shutdown timeout
	HTTPShutdownTimeout = 30 * time.Second

	// Request body limit
	MaxRequestBodyBytes = 1 << 16
)
