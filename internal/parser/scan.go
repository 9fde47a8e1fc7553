package parser

import (
	"strings"
)

// transactionDiscriminator is the field that marks a scanned object as
// transaction-shaped. Both the streaming ingestor and the partial
// extraction strategy anchor on it.
const transactionDiscriminator = `"type"`

// scanLeafObjects returns every complete, innermost `{...}` span in s,
// honoring string literals and escapes. Transaction objects contain no
// nested objects, so leaves are exactly the candidates both callers
// want; the outer response wrapper never appears in the result.
func scanLeafObjects(s string) []string {
	type frame struct {
		start    int
		hasChild bool
	}

	var (
		spans    []string
		stack    []frame
		inString bool
		escaped  bool
	)

	for i, r := range s {
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
		case '{':
			if !inString {
				stack = append(stack, frame{start: i})
			}
		case '}':
			if !inString && len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if !top.hasChild {
					spans = append(spans, s[top.start:i+1])
				}
				if len(stack) > 0 {
					stack[len(stack)-1].hasChild = true
				}
			}
		}
	}
	return spans
}

// scanTransactionObjects filters leaf object spans down to the ones
// carrying the transaction discriminator field.
func scanTransactionObjects(s string) []string {
	var out []string
	for _, span := range scanLeafObjects(s) {
		if strings.Contains(span, transactionDiscriminator) {
			out = append(out, span)
		}
	}
	return out
}
