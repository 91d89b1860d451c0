package provider

import (
	"errors"
	"strings"
)

var ErrNoJSONObject = errors.New("no JSON object found in response")

// ExtractJSONObject returns the first balanced {...} span of text. Braces
// inside JSON strings are ignored, so prose, code fences and trailing chatter
// around the object are tolerated. The span is not validated here.
func ExtractJSONObject(text string) (string, error) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchBrace(text, start); end > 0 {
			return text[start : end+1], nil
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSONObject
}

func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
