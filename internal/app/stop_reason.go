package app

// StopReason is logged when the app stops.
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSignal     StopReason = "signal"
	StopScriptDone StopReason = "script_done"
	StopFatalError StopReason = "fatal_error"
)
