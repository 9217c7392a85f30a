// Package logx configures menunotice's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller, colour only on a TTY)
//   - File output JSON-structured
//   - Optional main-menu sink (min-level + rate limiting) so load-time errors
//     are visible to the player without opening the log file
package logx
