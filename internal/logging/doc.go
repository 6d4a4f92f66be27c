// Package logging wires slog with paddock's console and JSON handlers,
// attribute helpers, and standardized field names so every component logs the
// same shape.
package logging
