// Package logging configures the structured logger shared by both
// planes, matching the *slog.Logger wired through the plugin loader
// (internal/plugin/loader/loader.go) alongside plainer log.Printf call
// sites elsewhere in this codebase.
package logging

import (
	"log/slog"
	"os"
)

// New returns a JSON slog.Logger tagged with the given component name.
func New(component string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(h).With("component", component)
}
