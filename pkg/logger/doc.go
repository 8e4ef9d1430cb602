// Package logger provides structured logging with configurable log levels.
// It wraps the standard log/slog package: production gets JSON output,
// every other environment gets colorized terminal output.
package logger
