package logger

import "go.uber.org/zap/zapcore"

// Verbosity counts the -v flags on the command line. Next to the zap level
// it selects, the count gates whole categories of CLI output; see output.go.
//
//	if logger.ShouldOutput(verbosity, logger.OutputTiming) {
//		fmt.Printf("update took %dms\n", elapsed.Milliseconds())
//	}
const (
	VerbosityUser  = 0 // results and errors only
	VerbosityInfo  = 1 // -v: progress, startup, backend status
	VerbosityDebug = 2 // -vv: dispatch detail, timing, config
	VerbosityTrace = 3 // -vvv: backend traffic, SQL, subscriptions
	VerbosityAll   = 4 // -vvvv: full request/response bodies
)

// VerbosityToLevel maps a flag count to the zap level backing it. Counts
// past -vv all land on debug; zap has nothing finer, the extra levels only
// widen the category gates.
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

var levelNames = [...]string{
	VerbosityUser:  "User",
	VerbosityInfo:  "Info (-v)",
	VerbosityDebug: "Debug (-vv)",
	VerbosityTrace: "Trace (-vvv)",
	VerbosityAll:   "All (-vvvv)",
}

// LevelName returns the display name of a verbosity level.
func LevelName(verbosity int) string {
	switch {
	case verbosity >= 0 && verbosity < len(levelNames):
		return levelNames[verbosity]
	case verbosity > VerbosityAll:
		return "All (-vvvv+)"
	default:
		return "Unknown"
	}
}
