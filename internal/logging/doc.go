// Package logging assembles structured slog loggers shared across curator
// components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes attr helpers plus standardized field keys so every
// component tags log lines with the same shape. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
