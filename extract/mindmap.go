package extract

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Node is one topic of a mind map
type Node struct {
	Title    string `json:"title"`
	Children []Node `json:"children,omitempty"`
}

// MindMap is a generated topic tree
type MindMap struct {
	Root   Node   `json:"root"`
	Method Method `json:"-"`
}

// titleKeys are the names generators use for a node's text, in order of preference
var titleKeys = []string{"title", "name", "label", "text", "topic"}

// ParseMindMap extracts a mind map from model output. The document must have
// a top-level root; node titles and child lists are read leniently.
func ParseMindMap(text string) (*MindMap, error) {
	res, err := Parse(text, "root")
	if err != nil {
		return nil, err
	}
	root := gjson.GetBytes(res.Data, "root")
	node, ok := parseNode(root)
	if !ok {
		return nil, ErrMissingRoot
	}
	return &MindMap{Root: node, Method: res.Method}, nil
}

func parseNode(v gjson.Result) (Node, bool) {
	if v.Type == gjson.String {
		title := strings.TrimSpace(v.String())
		return Node{Title: title}, title != ""
	}
	if !v.IsObject() {
		return Node{}, false
	}

	var n Node
	for _, k := range titleKeys {
		if t := v.Get(k); t.Exists() && strings.TrimSpace(t.String()) != "" {
			n.Title = strings.TrimSpace(t.String())
			break
		}
	}
	children := v.Get("children")
	if !children.Exists() {
		children = v.Get("subtopics")
	}
	children.ForEach(func(_, c gjson.Result) bool {
		if child, ok := parseNode(c); ok {
			n.Children = append(n.Children, child)
		}
		return true
	})
	return n, n.Title != "" || len(n.Children) > 0
}

// Count returns the number of nodes
func (m *MindMap) Count() int {
	return m.Root.count()
}

// Depth returns the number of levels
func (m *MindMap) Depth() int {
	return m.Root.depth()
}

func (n Node) count() int {
	total := 1
	for _, c := range n.Children {
		total += c.count()
	}
	return total
}

func (n Node) depth() int {
	d := 0
	for _, c := range n.Children {
		d = max(d, c.depth())
	}
	return d + 1
}

// Outline renders the map as an indented list
func (m *MindMap) Outline() string {
	var b strings.Builder
	m.Root.outline(&b, 0)
	return b.String()
}

func (n Node) outline(b *strings.Builder, level int) {
	b.WriteString(strings.Repeat("  ", level))
	b.WriteString("- ")
	b.WriteString(n.Title)
	b.WriteString("\n")
	for _, c := range n.Children {
		c.outline(b, level+1)
	}
}
