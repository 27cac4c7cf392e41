// Package planfmt renders query plan and profile trees in a human-readable
// indented form.
package planfmt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Node is one operator of a plan or profile tree.
type Node struct {
	Operator    string
	Args        map[string]any
	Identifiers []string
	Children    []*Node
}

// FromPlan converts a driver plan tree.
func FromPlan(plan neo4j.Plan) *Node {
	if plan == nil {
		return nil
	}
	node := &Node{
		Operator:    plan.Operator(),
		Args:        plan.Arguments(),
		Identifiers: plan.Identifiers(),
	}
	for _, child := range plan.Children() {
		node.Children = append(node.Children, FromPlan(child))
	}
	return node
}

// FromProfile converts a driver profile tree. Execution counters are folded
// into the node arguments so they render like any other field.
func FromProfile(profile neo4j.ProfiledPlan) *Node {
	if profile == nil {
		return nil
	}
	args := make(map[string]any, len(profile.Arguments())+2)
	for k, v := range profile.Arguments() {
		args[k] = v
	}
	args["DbHits"] = profile.DbHits()
	args["Records"] = profile.Records()

	node := &Node{
		Operator:    profile.Operator(),
		Args:        args,
		Identifiers: profile.Identifiers(),
	}
	for _, child := range profile.Children() {
		node.Children = append(node.Children, FromProfile(child))
	}
	return node
}

var (
	operatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	timingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// timing and work counters get highlighted when rendering.
var highlightedArgs = map[string]bool{
	"Time":    true,
	"time":    true,
	"DbHits":  true,
	"Records": true,
}

// Renderer renders plan trees. Plain disables styling, for pipes and tests.
type Renderer struct {
	Plain bool
}

// Render renders the tree with default styling. Optional header lines are
// emitted before the tree.
func Render(node *Node, header ...string) string {
	return Renderer{}.Render(node, header...)
}

// RenderPlain renders the tree without any styling.
func RenderPlain(node *Node, header ...string) string {
	return Renderer{Plain: true}.Render(node, header...)
}

func (r Renderer) Render(node *Node, header ...string) string {
	var b strings.Builder
	for _, line := range header {
		b.WriteString(line)
		b.WriteString("\n")
	}
	r.render(&b, node, 0)
	return b.String()
}

func (r Renderer) render(b *strings.Builder, node *Node, indent int) {
	if node == nil {
		return
	}

	prefix := strings.Repeat("\t", indent) + "|\t"

	b.WriteString(prefix)
	b.WriteString(r.style(operatorStyle, "Step: "+node.Operator))
	b.WriteString("\n")

	keys := make([]string, 0, len(node.Args))
	for k := range node.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		value := formatValue(node.Args[k])
		if highlightedArgs[k] {
			value = r.style(timingStyle, value)
		}
		b.WriteString(prefix)
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\n")
	}

	for _, child := range node.Children {
		r.render(b, child, indent+1)
	}
}

func (r Renderer) style(style lipgloss.Style, s string) string {
	if r.Plain {
		return s
	}
	return style.Render(s)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case int64:
		return groupDigits(t)
	case int:
		return groupDigits(int64(t))
	default:
		return fmt.Sprintf("%v", t)
	}
}

// groupDigits formats an integer with spaces between thousands groups.
func groupDigits(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var groups []string
	for len(s) > 3 {
		groups = append([]string{s[len(s)-3:]}, groups...)
		s = s[:len(s)-3]
	}
	groups = append([]string{s}, groups...)
	out := strings.Join(groups, " ")
	if neg {
		return "-" + out
	}
	return out
}
