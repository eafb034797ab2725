package selector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepair(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"leading digit class", ".4rating", `.\34 rating`},
		{"leading digit class after tag", "span.star.5", `span.star.\35 `},
		{"descendant with digit class", "#main > .1col .item", `#main > .\31 col .item`},
		{"broken class with space", ".rating4. 0251", `.rating4.\30 251`},
		{"broken class with several spaces", "div.score.   42", `div.score.\34 2`},
		{"broken class without space", ".rating4.0251", `.rating4.\30 251`},
		{"valid selector untouched", "div.btn-primary > a:nth-of-type(2)", "div.btn-primary > a:nth-of-type(2)"},
		{"text selector untouched", `button:has-text("Save")`, `button:has-text("Save")`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Repair(tt.input))
		})
	}
}

func TestRepair_Idempotent(t *testing.T) {
	inputs := []string{
		".4rating",
		".rating4. 0251",
		".rating4.0251",
		"x.4a.5b",
		".a. 1. 2",
		"..5",
		".5a. 12",
		`.\34 rating`,
		"div.btn.  42 > span",
		`li:has-text("4.5 stars")`,
		"#id.1.2.3",
		"...",
		". 5",
	}
	for _, in := range inputs {
		once := Repair(in)
		assert.Equal(t, once, Repair(once), "input %q", in)
	}
}

func TestRepair_ResultParsesAsCSS(t *testing.T) {
	s, err := FromHTML(strings.NewReader(`<html><body><span class="4rating">*</span><span class="rating">*</span></body></html>`))
	require.NoError(t, err)

	_, err = s.Query(".4rating")
	require.Error(t, err)

	nodes, err := s.Query(Repair(".4rating"))
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "4rating", classList(nodes[0])[0])
}
