// Package yamlout renders an ordered key/value + list tree as block-style YAML.
//
// Supported leaf values are string, bool, int, int64, float64 and nil. Map keeps
// insertion order, which a plain Go map cannot.
package yamlout

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Pair is one key/value entry of a Map
type Pair struct {
	Key   string
	Value interface{}
}

// Map is an ordered mapping
type Map []Pair

// List is a sequence
type List []interface{}

// Set appends a key and returns the map for chaining
func (m Map) Set(key string, value interface{}) Map {
	return append(m, Pair{Key: key, Value: value})
}

// Strings converts a string slice into a List
func Strings(items []string) List {
	l := make(List, len(items))
	for i, s := range items {
		l[i] = s
	}
	return l
}

// Marshal renders root as a YAML document terminated by a newline
func Marshal(root Map) string {
	var b strings.Builder
	writeMap(&b, root, 0, false)
	return b.String()
}

func writeMap(b *strings.Builder, m Map, indent int, listItem bool) {
	for i, p := range m {
		prefix := pad(indent)
		if listItem {
			if i == 0 {
				prefix = pad(indent) + "- "
			} else {
				prefix = pad(indent + 2)
			}
		}
		writeEntry(b, prefix, p.Key, p.Value)
	}
}

// writeEntry writes "key: value", recursing into collections. Children of the
// key sit two columns right of where the key starts.
func writeEntry(b *strings.Builder, prefix, key string, value interface{}) {
	childIndent := len(prefix) + 2
	b.WriteString(prefix)
	b.WriteString(Scalar(key))
	b.WriteString(":")

	switch v := value.(type) {
	case Map:
		if len(v) == 0 {
			b.WriteString(" {}\n")
			return
		}
		b.WriteString("\n")
		writeMap(b, v, childIndent, false)
	case List:
		if len(v) == 0 {
			b.WriteString(" []\n")
			return
		}
		b.WriteString("\n")
		writeList(b, v, childIndent)
	default:
		b.WriteString(" ")
		b.WriteString(Scalar(v))
		b.WriteString("\n")
	}
}

func writeList(b *strings.Builder, l List, indent int) {
	for _, item := range l {
		switch v := item.(type) {
		case Map:
			if len(v) == 0 {
				b.WriteString(pad(indent) + "- {}\n")
				continue
			}
			writeMap(b, v, indent, true)
		case List:
			if len(v) == 0 {
				b.WriteString(pad(indent) + "- []\n")
				continue
			}
			b.WriteString(pad(indent) + "-\n")
			writeList(b, v, indent+2)
		default:
			b.WriteString(pad(indent) + "- " + Scalar(v) + "\n")
		}
	}
}

// Scalar formats a leaf value. Strings are double-quoted only when a plain
// scalar would be read back as something else.
func Scalar(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		if needsQuote(x) {
			return strconv.Quote(x)
		}
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return strconv.Quote(fmt.Sprint(x))
	}
}

var reservedWords = map[string]bool{
	"true": true, "false": true, "yes": true, "no": true, "on": true, "off": true,
	"y": true, "n": true, "null": true, "~": true,
}

func needsQuote(s string) bool {
	if s == "" {
		return true
	}
	if strings.TrimSpace(s) != s {
		return true
	}
	if reservedWords[strings.ToLower(s)] {
		return true
	}
	if strings.ContainsAny(s, "\"\\") || hasUnsafeRune(s) {
		return true
	}
	if strings.Contains(s, ": ") || strings.Contains(s, " #") || strings.HasSuffix(s, ":") {
		return true
	}
	switch s[0] {
	case '-', '?', ':', ',', '[', ']', '{', '}', '#', '&', '*', '!', '|', '>', '\'', '%', '@', '`', '.', '+':
		return true
	}
	if s[0] >= '0' && s[0] <= '9' {
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	return false
}

// hasUnsafeRune reports runes a plain scalar cannot carry: invalid UTF-8,
// control characters and the YAML line breaks NEL, LS and PS.
func hasUnsafeRune(s string) bool {
	if !utf8.ValidString(s) {
		return true
	}
	for _, r := range s {
		switch r {
		case '\u0085', '\u2028', '\u2029', '\ufeff':
			return true
		}
		if !unicode.IsPrint(r) {
			return true
		}
	}
	return false
}

func pad(n int) string {
	return strings.Repeat(" ", n)
}
