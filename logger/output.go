package logger

// Output categories gate what the CLI prints at each -v count. Log levels
// filter by severity; categories filter by kind, so even a warning-level
// detail stays hidden until its category's verbosity is reached.

// OutputCategory names one kind of CLI output.
type OutputCategory int

// Categories are declared in ascending verbosity order; requiredVerbosity
// depends on the group boundaries below.
const (
	// Always shown.
	OutputResults    OutputCategory = iota // listings and command output
	OutputErrors                           // errors with hints
	OutputUserStatus                       // final success/failure status

	// -v
	OutputProgress      // progress indicators
	OutputStartup       // startup banners, config summary
	OutputBackendStatus // backend registered/connected/unavailable
	OutputOperationInfo // high-level operation summaries

	// -vv
	OutputDispatch  // source resolution and ownership-chain walks
	OutputTiming    // operation timing
	OutputConfig    // config values loaded/applied
	OutputHTTPCalls // external HTTP requests made
	OutputDBStats   // database statistics and connection info

	// -vvv
	OutputBackendTraffic // raw backend request/response summaries
	OutputSQLQueries     // individual SQL queries executed
	OutputSubscriptions  // subscription lifecycle and received values
	OutputInternalOp     // internal operation flow

	// -vvvv
	OutputRequestBody  // full HTTP/MQTT request bodies
	OutputResponseBody // full HTTP/MQTT response bodies
	OutputDataDump     // full data structure contents
)

// requiredVerbosity returns the smallest -v count that reveals category.
// Values outside the declared range require everything.
func requiredVerbosity(category OutputCategory) int {
	switch {
	case category < OutputResults:
		return VerbosityAll
	case category <= OutputUserStatus:
		return VerbosityUser
	case category <= OutputOperationInfo:
		return VerbosityInfo
	case category <= OutputDBStats:
		return VerbosityDebug
	case category <= OutputInternalOp:
		return VerbosityTrace
	default:
		return VerbosityAll
	}
}

// ShouldOutput reports whether category is shown at the given verbosity.
func ShouldOutput(verbosity int, category OutputCategory) bool {
	return verbosity >= requiredVerbosity(category)
}

var verbosityDescriptions = [...]string{
	VerbosityUser:  "results and errors only",
	VerbosityInfo:  "results, errors, progress, and status",
	VerbosityDebug: "above + dispatch, timing, config details",
	VerbosityTrace: "above + backend traffic, SQL, subscriptions",
	VerbosityAll:   "full output including request/response bodies",
}

// VerbosityDescription summarizes what a -v count reveals.
func VerbosityDescription(verbosity int) string {
	switch {
	case verbosity >= 0 && verbosity < len(verbosityDescriptions):
		return verbosityDescriptions[verbosity]
	case verbosity > VerbosityAll:
		return "maximum verbosity"
	default:
		return "unknown verbosity level"
	}
}
