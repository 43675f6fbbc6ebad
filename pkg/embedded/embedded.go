// Package embedded provides embedded static assets for the application.
package embedded

import (
	"embed"
)

// Files contains the dashboard (frontend/dist) served by the HTTP server.
//
//go:embed frontend/dist
var Files embed.FS
