package level

import (
	"fmt"
	"strings"
)

// Level is the severity of a log event and, on a logger, the minimum
// severity that passes its filter. The zero value Unset sorts below every
// real level so an unset threshold never suppresses anything by accident.
type Level int

const (
	Unset Level = iota
	// Off as a logger threshold silences it entirely; no event carries Off.
	Off
	// On as a logger threshold passes every real event.
	On
	Debug
	Info
	Warn
	Error
)

var names = map[Level]string{
	Unset: "UNSET",
	Off:   "OFF",
	On:    "ON",
	Debug: "DEBUG",
	Info:  "INFO",
	Warn:  "WARN",
	Error: "ERROR",
}

// String returns the canonical upper-case name.
func (l Level) String() string {
	if s, ok := names[l]; ok {
		return s
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	_, ok := names[l]
	return ok
}

// MarshalJSON emits the canonical name rather than the ordinal, which is
// an internal ordering detail.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// UnmarshalJSON accepts any spelling Parse does.
func (l *Level) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Parse converts common severity spellings to a Level.
func Parse(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UNSET", "":
		return Unset, nil
	case "OFF", "NONE":
		return Off, nil
	case "ON", "ALL":
		return On, nil
	case "DEBUG", "DEBU", "DBG", "TRACE":
		return Debug, nil
	case "INFO", "INFORMATION", "INF":
		return Info, nil
	case "WARN", "WARNING", "WRN":
		return Warn, nil
	case "ERROR", "ERR", "ERRO", "FATAL", "CRITICAL":
		return Error, nil
	}
	return Unset, fmt.Errorf("level: unknown level %q", s)
}

// MustParse is Parse for trusted literals; it panics on failure.
func MustParse(s string) Level {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}
