// Package paramtext implements the shared quote-aware tokenizer for
// instance-parameter text ("key=value key2='v v' key3=''"), used by the
// PatternedGraph builder (C5) to parse an instance's authored parameter
// text. See spec §4.5.5 and §4.6.3.
package paramtext

import (
	"fmt"
	"strings"
)

// Entry is one key=value pair in authored order.
type Entry struct {
	Key   string
	Value string
}

// Parse tokenizes "key=value key2='quoted value' key3=''" into an ordered
// list of entries. Quoted values may contain spaces and may be empty.
// Rejects empty keys.
func Parse(text string) ([]Entry, error) {
	var entries []Entry

	runes := []rune(text)
	i := 0

	for i < len(runes) {
		for i < len(runes) && runes[i] == ' ' {
			i++
		}
		if i >= len(runes) {
			break
		}

		keyStart := i
		for i < len(runes) && runes[i] != '=' && runes[i] != ' ' {
			i++
		}

		if i >= len(runes) || runes[i] != '=' {
			return nil, fmt.Errorf("malformed parameter token near %q: expected 'key=value'", string(runes[keyStart:]))
		}

		key := string(runes[keyStart:i])
		if key == "" {
			return nil, fmt.Errorf("empty parameter key in %q", text)
		}

		i++ // consume '='

		var value string

		if i < len(runes) && (runes[i] == '\'' || runes[i] == '"') {
			quote := runes[i]
			i++
			valStart := i
			for i < len(runes) && runes[i] != quote {
				i++
			}
			if i >= len(runes) {
				return nil, fmt.Errorf("unterminated quoted value for key %q in %q", key, text)
			}
			value = string(runes[valStart:i])
			i++ // consume closing quote
		} else {
			valStart := i
			for i < len(runes) && runes[i] != ' ' {
				i++
			}
			value = string(runes[valStart:i])
		}

		entries = append(entries, Entry{Key: key, Value: value})
	}

	return entries, nil
}

// Format renders entries back into deterministic "key=value" text, space
// delimited, in the order given; values that are empty or contain blanks
// are single-quoted. Callers sort first if key-order formatting is
// required. Backend rendering builds its {params} text itself and does not
// call Format.
func Format(entries []Entry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		v := e.Value
		if strings.ContainsAny(v, " \t") || v == "" {
			parts = append(parts, fmt.Sprintf("%s='%s'", e.Key, v))
		} else {
			parts = append(parts, fmt.Sprintf("%s=%s", e.Key, v))
		}
	}
	return strings.Join(parts, " ")
}
