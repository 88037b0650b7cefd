package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchName(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		input    string
		expected bool
	}{
		{"exact text", Query{Name: "Know they can pay. Instantly."}, "Know they can pay. Instantly.", true},
		{"case insensitive", Query{Name: "know THEY can pay"}, "Know they can pay. Instantly.", true},
		{"substring", Query{Name: "Instantly"}, "Know they can pay. Instantly.", true},
		{"collapsed whitespace", Query{Name: "Know they  can\npay."}, "Know   they can pay.", true},
		{"no match", Query{Name: "Pricing"}, "Know they can pay. Instantly.", false},
		{"empty query name", Query{Name: ""}, "anything", true},
		{"blank query name", Query{Name: "   "}, "", true},
		{"empty node name", Query{Name: "Know"}, "", false},
		{"exact equal", Query{Name: "Know they can pay. Instantly.", Exact: true}, " Know they can pay.  Instantly. ", true},
		{"exact rejects substring", Query{Name: "Instantly", Exact: true}, "Know they can pay. Instantly.", false},
		{"exact is case sensitive", Query{Name: "know they can pay. instantly.", Exact: true}, "Know they can pay. Instantly.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.query.MatchName(tt.input)
			if result != tt.expected {
				t.Errorf("MatchName(%q) with %v = %v, want %v", tt.input, tt.query, result, tt.expected)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	nodes := []Node{
		{Role: "heading", Name: "Know they can pay. Instantly.", BackendNodeID: 10},
		{Role: "heading", Name: "Know they can pay. Instantly.", BackendNodeID: 11, Ignored: true},
		{Role: "heading", Name: "Know they can pay. Instantly.", BackendNodeID: 0},
		{Role: "link", Name: "Know they can pay. Instantly.", BackendNodeID: 12},
		{Role: "Heading", Name: "How it works", BackendNodeID: 13},
		{Role: "heading", Name: "know they can pay. instantly. today", BackendNodeID: 14},
	}

	got := Filter(nodes, Query{Role: "heading", Name: "Know they can pay. Instantly."})
	if assert.Len(t, got, 2) {
		assert.Equal(t, int64(10), got[0].BackendNodeID)
		assert.Equal(t, int64(14), got[1].BackendNodeID)
	}

	got = Filter(nodes, Query{Role: "heading", Name: "Know they can pay. Instantly.", Exact: true})
	if assert.Len(t, got, 1) {
		assert.Equal(t, int64(10), got[0].BackendNodeID)
	}

	got = Filter(nodes, Query{Role: "heading"})
	assert.Len(t, got, 3)

	assert.Empty(t, Filter(nil, Query{Role: "heading"}))
	assert.Empty(t, Filter(nodes, Query{Role: "button"}))
}

func TestDecodeValue(t *testing.T) {
	assert.Equal(t, "Know they can pay.", DecodeValue([]byte(`"Know they can pay."`)))
	assert.Equal(t, `quote " inside`, DecodeValue([]byte(`"quote \" inside"`)))
	assert.Equal(t, "2", DecodeValue([]byte(`2`)))
	assert.Equal(t, "true", DecodeValue([]byte(`true`)))
	assert.Equal(t, "", DecodeValue(nil))
}

func TestQueryString(t *testing.T) {
	assert.Equal(t, "role=heading", Query{Role: "heading"}.String())
	assert.Equal(t, `role=heading[name="Hi" i]`, Query{Role: "heading", Name: "Hi"}.String())
	assert.Equal(t, `role=heading[name="Hi" s]`, Query{Role: "heading", Name: "Hi", Exact: true}.String())
}
