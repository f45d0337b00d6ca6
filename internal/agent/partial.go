package agent

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// RepairJSON turns a truncated JSON document into the largest valid document
// it can prove from the prefix. An unterminated string value is kept and
// closed; unterminated keys, literals and numbers that are not yet valid are
// dropped back to the last complete value. ok is false when no object or
// array has started yet.
func RepairJSON(raw string) (string, bool) {
	return repairJSON(raw, "{[")
}

// repairJSON is RepairJSON for a document that starts with one of openers.
func repairJSON(raw, openers string) (string, bool) {
	s := strings.TrimSpace(raw)
	start := strings.IndexAny(s, openers)
	if start < 0 {
		return "", false
	}
	s = s[start:]

	var (
		stack     []byte // pending closers
		expectKey []bool // per object frame: next string is a key
		inStr     bool
		isKey     bool
		esc       bool
		good      = -1
		goodClose string
	)

	closers := func() string {
		b := make([]byte, len(stack))
		for i := range stack {
			b[i] = stack[len(stack)-1-i]
		}
		return string(b)
	}
	markGood := func(end int) {
		good = end
		goodClose = closers()
	}

scan:
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			if esc {
				esc = false
				continue
			}
			switch c {
			case '\\':
				esc = true
			case '"':
				inStr = false
				if !isKey {
					markGood(i + 1)
				}
			}
			continue
		}

		switch c {
		case '{':
			stack = append(stack, '}')
			expectKey = append(expectKey, true)
			markGood(i + 1)
		case '[':
			stack = append(stack, ']')
			expectKey = append(expectKey, false)
			markGood(i + 1)
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", false
			}
			stack = stack[:len(stack)-1]
			expectKey = expectKey[:len(expectKey)-1]
			if len(stack) == 0 {
				out := s[:i+1]
				return out, json.Valid([]byte(out))
			}
			markGood(i + 1)
		case '"':
			inStr = true
			isKey = false
			if n := len(stack); n > 0 && stack[n-1] == '}' && expectKey[n-1] {
				isKey = true
				expectKey[n-1] = false
			}
		case ',':
			if n := len(stack); n > 0 && stack[n-1] == '}' {
				expectKey[n-1] = true
			}
		case ':', ' ', '\n', '\t', '\r':
		default:
			j := i
			for j < len(s) && !strings.ContainsRune(",}] \n\t\r", rune(s[j])) {
				j++
			}
			if j == len(s) {
				if json.Valid([]byte(s[i:j])) && !strings.HasSuffix(s[i:j], ".") {
					markGood(j)
				}
				break scan
			}
			markGood(j)
			i = j - 1
		}
	}

	if inStr && !isKey {
		body := s
		if esc {
			body = body[:len(body)-1]
		}
		body = trimPartialRune(trimPartialUnicodeEscape(body))
		if cand := body + `"` + closers(); json.Valid([]byte(cand)) {
			return cand, true
		}
	}
	if good < 0 {
		return "", false
	}
	cand := s[:good] + goodClose
	return cand, json.Valid([]byte(cand))
}

// trimPartialUnicodeEscape drops a trailing \u escape with fewer than four
// hex digits.
func trimPartialUnicodeEscape(s string) string {
	idx := strings.LastIndex(s, `\u`)
	if idx < 0 || len(s)-idx-2 >= 4 {
		return s
	}
	for _, r := range s[idx+2:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return s
		}
	}
	return s[:idx]
}

// trimPartialRune drops a UTF-8 sequence cut off at the end of s.
func trimPartialRune(s string) string {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(s[i]) {
			continue
		}
		if !utf8.FullRuneInString(s[i:]) {
			return s[:i]
		}
		break
	}
	return s
}
