// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a plain console encoder writing to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, WarnKV, etc.).
//
// Every step of an unpack run accepts a context and extracts the logger from it,
// so records carry the command name and the extension being processed.
package logger
