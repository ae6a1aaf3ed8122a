// Package logx configures scoutbot's structured logging.
//
// A value-type Logger wraps zerolog so components can carry a logger by value:
//   - Console output stays readable (short timestamp + short caller)
//   - File output is JSON, one event per line
//   - An optional Telegram sink forwards warnings to an operator chat
//     (min-level + rate limiting, never blocking the caller)
package logx
