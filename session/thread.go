package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caravel-ai/caravel/core"
)

// ThreadNode is one session plus its resolved children, forming the
// delegation tree rooted at a top-level session.
type ThreadNode struct {
	Session  *core.Session `json:"session"`
	Children []*ThreadNode `json:"children,omitempty"`
}

// Tree resolves the full subtree below rootID, children in creation order.
func Tree(store core.SessionStore, rootID string) (*ThreadNode, error) {
	sess, err := store.Get(rootID)
	if err != nil {
		return nil, err
	}
	node := &ThreadNode{Session: sess}
	children, err := store.Children(rootID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		sub, err := Tree(store, child.ID)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, sub)
	}
	return node, nil
}

// TreeUsage rolls up token and cost accounting over the whole subtree below
// rootID, keyed by "provider/model" like per-session usage.
func TreeUsage(store core.SessionStore, rootID string) (core.Usage, error) {
	root, err := Tree(store, rootID)
	if err != nil {
		return nil, err
	}
	total := core.Usage{}
	var walk func(n *ThreadNode)
	walk = func(n *ThreadNode) {
		total.Merge(n.Session.Usage)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return total, nil
}

// Export renders the subtree below id in the requested format, "text" for a
// human-readable transcript or "json" for the full structure.
func Export(store core.SessionStore, id, format string) (string, error) {
	node, err := Tree(store, id)
	if err != nil {
		return "", err
	}
	switch format {
	case "json":
		raw, err := json.MarshalIndent(node, "", "  ")
		if err != nil {
			return "", err
		}
		return string(raw), nil
	case "text", "":
		var sb strings.Builder
		writeText(&sb, node, 0)
		return sb.String(), nil
	default:
		return "", &core.ValidationError{Field: "format", Value: format, Message: "must be \"text\" or \"json\""}
	}
}

func writeText(sb *strings.Builder, node *ThreadNode, depth int) {
	indent := strings.Repeat("  ", depth)
	s := node.Session
	fmt.Fprintf(sb, "%s=== session %s (%s, agent %s", indent, s.ID, s.Type, s.Agent)
	if s.Name != "" {
		fmt.Fprintf(sb, ", %q", s.Name)
	}
	sb.WriteString(") ===\n")
	for _, msg := range s.Messages {
		switch {
		case len(msg.ToolCalls) > 0:
			for _, tc := range msg.ToolCalls {
				fmt.Fprintf(sb, "%s[%s] -> %s(%s)\n", indent, msg.Role, tc.Name, string(tc.Arguments))
			}
			if msg.Content != "" {
				fmt.Fprintf(sb, "%s[%s] %s\n", indent, msg.Role, msg.Content)
			}
		case len(msg.ToolResults) > 0:
			for _, tr := range msg.ToolResults {
				fmt.Fprintf(sb, "%s[%s] %s <- %s\n", indent, msg.Role, tr.Name, tr.Content)
			}
		default:
			fmt.Fprintf(sb, "%s[%s] %s\n", indent, msg.Role, msg.Content)
		}
	}
	for mdl, u := range s.Usage {
		fmt.Fprintf(sb, "%susage %s: in=%d out=%d cost=%.6f\n", indent, mdl, u.InputTokens, u.OutputTokens, u.Cost)
	}
	for _, c := range node.Children {
		writeText(sb, c, depth+1)
	}
}
