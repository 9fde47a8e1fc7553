package parser

import (
	"regexp"
	"strings"
)

// cleanModelJSON strips the junk models wrap around JSON despite being
// told not to: markdown fences and any prose before the first or after
// the last delimiter of the payload.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only from the first opening delimiter to the last closing
	// one, if both sides exist.
	start := strings.IndexAny(s, "{[")
	end := strings.LastIndexAny(s, "}]")
	if start != -1 && end > start {
		s = s[start : end+1]
	} else if start != -1 {
		// Truncated output: keep the tail for the repair pass.
		s = s[start:]
	}

	return strings.TrimSpace(s)
}

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// repairJSON applies the structural heuristics for truncated model
// output: terminate a dangling string literal, drop trailing commas
// before closers, then append the closing characters the text is short
// of, innermost first.
func repairJSON(raw string) string {
	s := cleanModelJSON(raw)
	if s == "" {
		return s
	}

	s = terminateDanglingString(s)
	s = trailingComma.ReplaceAllString(s, "$1")
	s = strings.TrimRight(s, " \t\n\r")
	s = strings.TrimSuffix(s, ",")

	var stack []rune
	inString := false
	escaped := false
	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				stack = append(stack, r)
			}
		case '}':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(s)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			sb.WriteByte('}')
		} else {
			sb.WriteByte(']')
		}
	}
	return sb.String()
}

// terminateDanglingString closes a string literal the output was cut
// off inside of, discarding a trailing half-escape first.
func terminateDanglingString(s string) string {
	inString := false
	escaped := false
	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		}
	}
	if escaped {
		s = strings.TrimSuffix(s, `\`)
	}
	if inString {
		s += `"`
	}
	return s
}
