//go:build tools

package tools

// Pins the goose CLI used to create and apply migrations under
// internal/adapters/postgres/migrations outside the server process.

import (
	_ "github.com/pressly/goose/v3/cmd/goose"
)
