// Package logging wires log/slog with console and JSON handlers and the
// standardized field names used across the moderation pipeline.
//
// WithContext enriches a logger with the item id, stage, and correlation id
// carried on a services context, so stage code logs consistently without
// threading identifiers by hand.
package logging
