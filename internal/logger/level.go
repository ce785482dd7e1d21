package logger

import "fmt"

// Level is a logger's verbosity threshold. Levels are ordered by
// ascending verbosity; a record is dropped when its level exceeds the
// logger's configured level.
type Level int

const (
	LevelNone Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "None"
	case LevelError:
		return "Error"
	case LevelWarn:
		return "Warn"
	case LevelInfo:
		return "Info"
	case LevelDebug:
		return "Debug"
	case LevelTrace:
		return "Trace"
	default:
		return "Unknown"
	}
}

// ParseLevel parses one of the recognized configuration values
// (None|Error|Warn|Info|Debug|Trace). Unrecognized input is an error;
// callers configuring from text should treat it as a configuration error
// per the error taxonomy, not silently default.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "None":
		return LevelNone, nil
	case "Error":
		return LevelError, nil
	case "Warn":
		return LevelWarn, nil
	case "Info":
		return LevelInfo, nil
	case "Debug":
		return LevelDebug, nil
	case "Trace":
		return LevelTrace, nil
	default:
		return LevelNone, fmt.Errorf("logger: unrecognized level %q", s)
	}
}
