package logger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
)

// palette binds the encoder's semantic slots to ANSI escape sequences.
// Slots name what gets colored, not which color it is, so a theme only
// has to decide hues once.
type palette struct {
	fg        string // plain message text
	time      string // timestamps
	id        string // element and store identifiers
	number    string // counts and durations
	stage     string // bracketed stage and protocol markers
	data      string // data movement messages (update, commit, sync)
	transport string // transport messages (broker, endpoint)
	lifecycle string // startup and registration messages
	warn      string
	warnBg    string
	err       string
	errBg     string
	component []string // rotated across logger names
}

// Both themes approximate their published dark variants in 256-color
// space: gruvbox-dark leans warm orange/yellow, everforest-dark keeps a
// strong green presence.
var themes = map[string]palette{
	"gruvbox": {
		fg:        "\x1b[38;5;223m", // cream #ebdbb2
		time:      "\x1b[38;5;108m", // aqua #8ec07c
		id:        "\x1b[38;5;109m", // blue #83a598
		number:    "\x1b[38;5;175m", // purple #d3869b
		stage:     "\x1b[38;5;208m", // orange #fe8019
		data:      "\x1b[38;5;142m", // green #b8bb26
		transport: "\x1b[38;5;109m", // blue #83a598
		lifecycle: "\x1b[38;5;208m", // orange #fe8019
		warn:      "\x1b[38;5;214m", // yellow #fabd2f
		warnBg:    "\x1b[48;5;58m",
		err:       "\x1b[38;5;167m", // red #fb4934
		errBg:     "\x1b[48;5;88m",
		component: []string{
			"\x1b[38;5;208m", // orange
			"\x1b[38;5;214m", // yellow
		},
	},
	"everforest": {
		fg:        "\x1b[38;5;223m", // beige #d3c6aa
		time:      "\x1b[38;5;107m", // mid green #83c092
		id:        "\x1b[38;5;109m", // blue-green #7fbbb3
		number:    "\x1b[38;5;108m", // bright green #a7c080
		stage:     "\x1b[38;5;208m", // orange #e69875
		data:      "\x1b[38;5;108m", // bright green #a7c080
		transport: "\x1b[38;5;107m", // mid green #83c092
		lifecycle: "\x1b[38;5;65m",  // deep green
		warn:      "\x1b[38;5;179m", // yellow #dbbc7f
		warnBg:    "\x1b[48;5;58m",
		err:       "\x1b[38;5;167m", // red #e67e80
		errBg:     "\x1b[48;5;52m",
		component: []string{
			"\x1b[38;5;108m", // bright green
			"\x1b[38;5;65m",  // deep green
			"\x1b[38;5;208m", // orange
		},
	},
}

var currentTheme = "everforest"

// SetTheme selects the active color scheme. Unknown names keep the
// current theme so a typo in config degrades to the default instead of
// breaking output.
func SetTheme(name string) {
	if _, ok := themes[name]; ok {
		currentTheme = name
	}
}

func theme() palette {
	return themes[currentTheme]
}

// componentColor picks a stable color for a logger name so repeated
// lines from the same component group visually.
func componentColor(name string, pal palette) string {
	sum := 0
	for _, r := range name {
		sum += int(r)
	}
	return pal.component[sum%len(pal.component)]
}

// messageColor classifies a message by its dominant verb so related
// operations share a hue across components.
func messageColor(msg string, pal palette) string {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "update", "commit", "synced", "extracted"):
		return pal.data
	case containsAny(lower, "connected", "subscribed", "broker", "endpoint"):
		return pal.transport
	case containsAny(lower, "starting", "registered", "store", "config"):
		return pal.lifecycle
	}
	return pal.fg
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var bracketPattern = regexp.MustCompile(`\[[^\]]+\]`)

// colorizeMessage highlights bracketed markers inside a message:
// [id:...] and [hash:...] take the identifier color, any other bracket
// ([commit], [mqtt]) the stage color. Plain text keeps the message's
// semantic color. Content is never dropped or reordered.
func colorizeMessage(msg string) string {
	pal := theme()
	base := messageColor(msg, pal)

	var out strings.Builder
	last := 0
	for _, loc := range bracketPattern.FindAllStringIndex(msg, -1) {
		if before := msg[last:loc[0]]; before != "" {
			out.WriteString(base + before + colorReset)
		}
		inner := msg[loc[0]+1 : loc[1]-1]
		mark := pal.stage
		if strings.HasPrefix(inner, "id:") || strings.HasPrefix(inner, "hash:") {
			mark = pal.id
		}
		out.WriteString(mark + msg[loc[0]:loc[1]] + colorReset)
		last = loc[1]
	}
	if rest := msg[last:]; rest != "" {
		out.WriteString(base + rest + colorReset)
	}
	return out.String()
}

var bufPool = buffer.NewPool()

// consoleEncoder renders compact single-line entries for terminals:
//
//	13:04:35  s.engine  Committed element [update]  temperature (3 added, 1 overwritten)
//
// It embeds a JSON encoder solely to satisfy the zapcore.Encoder field
// methods; EncodeEntry formats the line itself.
type consoleEncoder struct {
	zapcore.Encoder
}

func newConsoleEncoder() *consoleEncoder {
	return &consoleEncoder{Encoder: zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())}
}

func (enc *consoleEncoder) Clone() zapcore.Encoder {
	return &consoleEncoder{Encoder: enc.Encoder.Clone()}
}

func (enc *consoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	pal := theme()
	line := bufPool.Get()

	line.AppendString(pal.time)
	line.AppendString(ent.Time.Format("15:04:05"))
	line.AppendString(colorReset)

	// Info is the default level; tagging it would only add noise.
	if tag := levelTag(ent.Level, pal); tag != "" {
		line.AppendString("  ")
		line.AppendString(tag)
	}

	if ent.LoggerName != "" {
		line.AppendString("  ")
		line.AppendString(componentColor(ent.LoggerName, pal))
		line.AppendString(abbreviateName(ent.LoggerName))
		line.AppendString(colorReset)
	}

	line.AppendString("  ")
	line.AppendString(colorizeMessage(ent.Message))

	if vals := extractFieldValues(fields); vals != "" {
		line.AppendString("  ")
		line.AppendString(vals)
	}

	line.AppendString("\n")
	return line, nil
}

func levelTag(level zapcore.Level, pal palette) string {
	switch level {
	case zapcore.WarnLevel:
		return colorBold + pal.warnBg + pal.warn + "WARN" + colorReset
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + pal.errBg + pal.err + level.CapitalString() + colorReset
	default:
		return ""
	}
}

// abbreviateName shortens the leading segment of a dotted logger name:
// store.engine becomes s.engine. Single-segment names pass through.
func abbreviateName(name string) string {
	head, rest, ok := strings.Cut(name, ".")
	if !ok || head == "" {
		return name
	}
	return head[:1] + "." + rest
}

func fieldValue(field zapcore.Field) string {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return strconv.FormatInt(field.Integer, 10)
	}
	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface)
	}
	return ""
}

// extractFieldValues renders the handful of structured fields the console
// format cares about: identifiers, counts, and durations. Everything else
// stays on the JSON sink.
func extractFieldValues(fields []zapcore.Field) string {
	pal := theme()
	var parts []string
	var added, overwritten, skipped string

	for _, field := range fields {
		switch field.Key {
		case FieldID, FieldIDShort, FieldHash:
			if val := fieldValue(field); val != "" {
				parts = append(parts, pal.id+val+colorReset)
			}
		case FieldAdded:
			added = fieldValue(field)
		case FieldOverwritten:
			overwritten = fieldValue(field)
		case FieldSkipped:
			skipped = fieldValue(field)
		case FieldCount:
			if val := fieldValue(field); val != "" {
				parts = append(parts, pal.number+val+colorReset)
			}
		case FieldDurationMS:
			if val := fieldValue(field); val != "" {
				parts = append(parts, pal.number+val+colorReset+"ms")
			}
		}
	}

	// Sync results read as one unit: (3 added, 1 overwritten, 2 skipped).
	if added != "" && overwritten != "" {
		var b strings.Builder
		b.WriteString(pal.fg + "(" + pal.number + added + colorReset + pal.fg + " added, ")
		b.WriteString(pal.number + overwritten + colorReset + pal.fg + " overwritten")
		if skipped != "" {
			b.WriteString(", " + pal.number + skipped + colorReset + pal.fg + " skipped")
		}
		b.WriteString(")" + colorReset)
		parts = append(parts, b.String())
	}

	return strings.Join(parts, " ")
}
