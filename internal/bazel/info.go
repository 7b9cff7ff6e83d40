package bazel

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// InfoExecutionRoot is the info key naming the execution root.
const InfoExecutionRoot = "execution_root"

var (
	errNotUTF8        = errors.New("info output is not valid UTF-8")
	errMalformedField = errors.New("malformed info record")
	errMissingField   = errors.New("missing info field")
)

// ParseInfo parses `key: value` records, one per line, split at the first
// colon. Blank lines are skipped; any other line without a colon is an
// error. Later duplicates win.
func ParseInfo(output string) (map[string]string, error) {
	if !utf8.ValidString(output) {
		return nil, errNotUTF8
	}
	fields := make(map[string]string)
	for i, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w on line %d: %q", errMalformedField, i+1, line)
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields, nil
}

func readField(fields map[string]string, name string) (string, error) {
	v, ok := fields[name]
	if !ok || v == "" {
		return "", fmt.Errorf("%w %q", errMissingField, name)
	}
	return v, nil
}
