package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// KeyValueSliceFlag implements flag.Value for repeated, comma-separated key=value tokens.
// A comma only starts a new token when the text after it begins with a key and '=', so
// "path=/a,b,service=s" gives "path=/a,b" and "service=s". Checking the key=value shape
// is left to the caller.
type KeyValueSliceFlag []string

func (f *KeyValueSliceFlag) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(*f, ",")
}

func (f *KeyValueSliceFlag) Set(value string) error {
	var tokens []string
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if len(tokens) > 0 && !startsWithKey(part) {
			tokens[len(tokens)-1] += "," + part
			continue
		}
		tokens = append(tokens, part)
	}
	for _, tok := range tokens {
		*f = append(*f, strings.TrimSpace(tok))
	}
	return nil
}

// startsWithKey reports whether s begins with an identifier followed by '='
func startsWithKey(s string) bool {
	key, _, ok := strings.Cut(strings.TrimSpace(s), "=")
	if !ok || key == "" {
		return false
	}
	for i, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r == '_' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}

// LogLevelFlag implements flag.Value for a slog level name
type LogLevelFlag slog.Level

func (l *LogLevelFlag) String() string {
	if l == nil {
		return slog.LevelInfo.String()
	}
	return slog.Level(*l).String()
}

func (l *LogLevelFlag) Set(value string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", value, err)
	}
	*l = LogLevelFlag(level)
	return nil
}

func (l *LogLevelFlag) Level() slog.Level {
	return slog.Level(*l)
}
