// Package logging provides slog attribute helpers used across the codebase.
//
// It keeps attribute naming consistent and makes sure no token material or
// raw user identifiers leak into log output: user ids are hashed, tokens are
// rendered as a length indicator only.
package logging
