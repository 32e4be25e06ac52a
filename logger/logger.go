package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the global logger. The package-level helpers and
	// ComponentLogger route through it; Initialize replaces it.
	Logger *zap.SugaredLogger
	// JSONOutput records which output mode Initialize selected.
	JSONOutput bool
)

// The zero state is a silent logger, so components constructed before
// Initialize (and tests that never call it) can log safely.
func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize replaces the global logger, choosing JSON or console output
// at the default info level.
func Initialize(jsonOutput bool) error {
	return InitializeWithLevel(jsonOutput, zap.InfoLevel)
}

// InitializeWithVerbosity sets up the global logger from a CLI verbosity count
// (-v, -vv, ...). See verbosity.go for the mapping.
func InitializeWithVerbosity(jsonOutput bool, verbosity int) error {
	return InitializeWithLevel(jsonOutput, VerbosityToLevel(verbosity))
}

// InitializeWithLevel sets up the global logger with an explicit level.
// Console output goes through the theme-aware encoder; JSON output uses
// zap's production encoder for machine consumption.
func InitializeWithLevel(jsonOutput bool, level zapcore.Level) error {
	JSONOutput = jsonOutput

	// Theme can be overridden without touching config files
	if theme := os.Getenv("AASKIT_LOG_THEME"); theme != "" {
		SetTheme(theme)
	}

	if jsonOutput {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		zapLogger, err := config.Build()
		if err != nil {
			return err
		}
		Logger = zapLogger.Sugar()
		return nil
	}

	Logger = zap.New(zapcore.NewCore(
		newConsoleEncoder(),
		zapcore.AddSync(os.Stdout),
		level,
	)).Sugar()
	return nil
}

// Cleanup flushes buffered log entries. Deferred in main.
func Cleanup() {
	if Logger != nil {
		Logger.Sync()
	}
}

var nop = zap.NewNop().Sugar()

// active returns the global logger, or a no-op one while Logger is nil,
// keeping the package-level helpers safe at any point in the lifecycle.
func active() *zap.SugaredLogger {
	if Logger == nil {
		return nop
	}
	return Logger
}

// Package-level helpers mirroring zap's sugared method set.

func Info(args ...interface{})  { active().Info(args...) }
func Warn(args ...interface{})  { active().Warn(args...) }
func Error(args ...interface{}) { active().Error(args...) }
func Debug(args ...interface{}) { active().Debug(args...) }

func Infof(format string, args ...interface{})  { active().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { active().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { active().Errorf(format, args...) }
func Debugf(format string, args ...interface{}) { active().Debugf(format, args...) }

func Infow(msg string, keysAndValues ...interface{})  { active().Infow(msg, keysAndValues...) }
func Warnw(msg string, keysAndValues ...interface{})  { active().Warnw(msg, keysAndValues...) }
func Errorw(msg string, keysAndValues ...interface{}) { active().Errorw(msg, keysAndValues...) }
func Debugw(msg string, keysAndValues ...interface{}) { active().Debugw(msg, keysAndValues...) }
