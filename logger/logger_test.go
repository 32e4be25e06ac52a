package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// resetLogger restores the package globals after a test, matching the
// no-op state the package initializes with.
func resetLogger(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		if Logger != nil {
			Logger.Sync()
		}
		Logger = zap.NewNop().Sugar()
		JSONOutput = false
	})
}

func TestInitialize(t *testing.T) {
	resetLogger(t)

	for _, jsonOutput := range []bool{true, false} {
		prev := Logger
		if err := Initialize(jsonOutput); err != nil {
			t.Fatalf("Initialize(%v) error = %v", jsonOutput, err)
		}
		if Logger == nil || Logger == prev {
			t.Errorf("Initialize(%v) did not install a new global logger", jsonOutput)
		}
		if JSONOutput != jsonOutput {
			t.Errorf("Initialize(%v) recorded JSONOutput = %v", jsonOutput, JSONOutput)
		}
	}
}

func TestInitializeWithVerbosity(t *testing.T) {
	resetLogger(t)

	for _, verbosity := range []int{VerbosityUser, VerbosityInfo, VerbosityDebug, VerbosityTrace} {
		if err := InitializeWithVerbosity(false, verbosity); err != nil {
			t.Fatalf("InitializeWithVerbosity(false, %d) error = %v", verbosity, err)
		}

		core := Logger.Desugar().Core()
		want := VerbosityToLevel(verbosity)
		if !core.Enabled(want) {
			t.Errorf("verbosity %d: level %v should be enabled", verbosity, want)
		}
		if want > zapcore.DebugLevel && core.Enabled(want-1) {
			t.Errorf("verbosity %d: level %v should be disabled", verbosity, want-1)
		}
	}
}

func TestInitializeThemeFromEnv(t *testing.T) {
	resetLogger(t)
	original := currentTheme
	t.Cleanup(func() { currentTheme = original })

	t.Setenv("AASKIT_LOG_THEME", "gruvbox")
	if err := Initialize(false); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if currentTheme != "gruvbox" {
		t.Errorf("AASKIT_LOG_THEME=gruvbox not applied, theme = %q", currentTheme)
	}
}

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{VerbosityUser, zapcore.WarnLevel},
		{VerbosityInfo, zapcore.InfoLevel},
		{VerbosityDebug, zapcore.DebugLevel},
		{VerbosityTrace, zapcore.DebugLevel},
		{VerbosityAll, zapcore.DebugLevel},
		{99, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		if got := VerbosityToLevel(tt.verbosity); got != tt.want {
			t.Errorf("VerbosityToLevel(%d) = %v, want %v", tt.verbosity, got, tt.want)
		}
	}
}

func TestLevelName(t *testing.T) {
	tests := []struct {
		verbosity int
		want      string
	}{
		{VerbosityUser, "User"},
		{VerbosityInfo, "Info (-v)"},
		{VerbosityDebug, "Debug (-vv)"},
		{VerbosityAll, "All (-vvvv)"},
		{VerbosityAll + 3, "All (-vvvv+)"},
		{-1, "Unknown"},
	}

	for _, tt := range tests {
		if got := LevelName(tt.verbosity); got != tt.want {
			t.Errorf("LevelName(%d) = %q, want %q", tt.verbosity, got, tt.want)
		}
	}
}

func TestShouldOutput(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		category  OutputCategory
		want      bool
	}{
		{"Errors always shown", VerbosityUser, OutputErrors, true},
		{"Progress hidden by default", VerbosityUser, OutputProgress, false},
		{"Progress shown at -v", VerbosityInfo, OutputProgress, true},
		{"Dispatch hidden at -v", VerbosityInfo, OutputDispatch, false},
		{"Dispatch shown at -vv", VerbosityDebug, OutputDispatch, true},
		{"SQL shown at -vvv", VerbosityTrace, OutputSQLQueries, true},
		{"Bodies only at -vvvv", VerbosityTrace, OutputRequestBody, false},
		{"Bodies shown at -vvvv", VerbosityAll, OutputRequestBody, true},
		{"Unknown category hidden below max", VerbosityTrace, OutputCategory(99), false},
		{"Unknown category shown at max", VerbosityAll, OutputCategory(99), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldOutput(tt.verbosity, tt.category); got != tt.want {
				t.Errorf("ShouldOutput(%d, %d) = %v, want %v",
					tt.verbosity, tt.category, got, tt.want)
			}
		})
	}
}

func TestVerbosityDescription(t *testing.T) {
	for v := VerbosityUser; v <= VerbosityAll; v++ {
		if VerbosityDescription(v) == "" {
			t.Errorf("VerbosityDescription(%d) returned empty", v)
		}
	}
	if got := VerbosityDescription(VerbosityAll + 3); got != "maximum verbosity" {
		t.Errorf("VerbosityDescription(beyond max) = %q", got)
	}
}

func TestComponentLogger(t *testing.T) {
	resetLogger(t)
	if err := Initialize(false); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	child := ComponentLogger("store.engine")
	if child == Logger {
		t.Error("ComponentLogger() should return a named child, not the global logger")
	}
	child.Info("component message")
}

func TestCleanup(t *testing.T) {
	resetLogger(t)

	if err := Initialize(false); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	Cleanup()
	if Logger == nil {
		t.Error("Cleanup() must leave the logger usable")
	}

	Logger = nil
	Cleanup() // must tolerate a nil logger
}

// TestLoggingFunctions verifies the package-level wrappers tolerate a nil
// global logger instead of panicking.
func TestLoggingFunctions(t *testing.T) {
	resetLogger(t)
	Logger = nil

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("package-level logging panicked with nil Logger: %v", r)
		}
	}()

	Info("info")
	Infof("info %d", 1)
	Infow("info", "key", "value")
	Warn("warn")
	Warnf("warn %d", 1)
	Warnw("warn", "key", "value")
	Error("error")
	Errorf("error %d", 1)
	Errorw("error", "key", "value")
	Debug("debug")
	Debugf("debug %d", 1)
	Debugw("debug", "key", "value")
}
