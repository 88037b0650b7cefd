// Package locator matches accessibility tree nodes by role and accessible name.
package locator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Query selects nodes by ARIA role and accessible name.
type Query struct {
	Role  string
	Name  string
	Exact bool
}

// String renders the query the way it appears in log lines.
func (q Query) String() string {
	if q.Name == "" {
		return fmt.Sprintf("role=%s", q.Role)
	}
	if q.Exact {
		return fmt.Sprintf("role=%s[name=%q s]", q.Role, q.Name)
	}
	return fmt.Sprintf("role=%s[name=%q i]", q.Role, q.Name)
}

// Node is a driver-neutral view of one accessibility tree node.
type Node struct {
	Role          string
	Name          string
	BackendNodeID int64
	Ignored       bool
}

// MatchName reports whether an accessible name satisfies the query.
// Whitespace is collapsed on both sides. Non-exact queries match a
// case-insensitive substring; exact queries require case-sensitive equality.
// An empty query name matches everything.
func (q Query) MatchName(name string) bool {
	want := normalize(q.Name)
	if want == "" {
		return true
	}
	got := normalize(name)
	if q.Exact {
		return got == want
	}
	return strings.Contains(strings.ToLower(got), strings.ToLower(want))
}

// Filter returns the nodes matching the query, in input order.
// Ignored nodes and nodes without a backing DOM node never match.
func Filter(nodes []Node, q Query) []Node {
	var out []Node
	for _, n := range nodes {
		if n.Ignored || n.BackendNodeID == 0 {
			continue
		}
		if !strings.EqualFold(n.Role, q.Role) {
			continue
		}
		if !q.MatchName(n.Name) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// DecodeValue turns the raw JSON of an AX property value into text.
// String literals are unquoted; anything else is returned verbatim.
func DecodeValue(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
