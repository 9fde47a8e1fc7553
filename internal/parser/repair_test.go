package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced no language", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around", `Here you go: {"a": 1} hope that helps`, `{"a": 1}`},
		{"truncated keeps tail", `{"a": [1, 2`, `{"a": [1, 2`},
		{"no json at all", "cannot help with that", "cannot help with that"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw))
		})
	}
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"balanced untouched", `{"a": 1}`, `{"a": 1}`},
		{"unclosed object", `{"a": 1`, `{"a": 1}`},
		{"unclosed nested", `{"a": [{"b": 1`, `{"a": [{"b": 1}]}`},
		{"trailing comma in array", `{"a": [1, 2,]}`, `{"a": [1, 2]}`},
		{"trailing comma at cut", `{"a": [1, 2,`, `{"a": [1, 2]}`},
		{"dangling string", `{"summary": "hel`, `{"summary": "hel"}`},
		{"dangling half escape", `{"s": "a\`, `{"s": "a"}`},
		{"brace inside string ignored", `{"s": "a { b"`, `{"s": "a { b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repairJSON(tt.raw))
		})
	}
}

func TestScanTransactionObjects(t *testing.T) {
	s := `{"transactions": [{"type": "expense", "amount": 1}, {"note": "no discriminator"}], "meta": {"inner": {"type": "nested"}}}`
	spans := scanTransactionObjects(s)
	require.Len(t, spans, 2)
	assert.Equal(t, `{"type": "expense", "amount": 1}`, spans[0])
	assert.Equal(t, `{"type": "nested"}`, spans[1])
}

func TestScanLeafObjects_StringAware(t *testing.T) {
	s := `{"description": "a } b", "type": "x"}`
	spans := scanLeafObjects(s)
	require.Len(t, spans, 1)
	assert.Equal(t, s, spans[0])
}

func TestScanLeafObjects_IncompleteTail(t *testing.T) {
	s := `[{"type": "a", "amount": 1}, {"type": "b", "amo`
	spans := scanLeafObjects(s)
	require.Len(t, spans, 1)
	assert.Equal(t, `{"type": "a", "amount": 1}`, spans[0])
}
