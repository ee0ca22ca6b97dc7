package proto

import (
	"errors"
	"fmt"
	"strings"
)

// MaxRoadmapDepth bounds roadmap nesting. The root is depth 1.
const MaxRoadmapDepth = 4

// RoadmapNode is one milestone of a roadmap tree.
type RoadmapNode struct {
	ID          string        `json:"id"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Duration    string        `json:"duration"`
	Skills      []string      `json:"skills"`
	Children    []RoadmapNode `json:"children,omitempty"`
}

// Depth returns the number of levels in the tree rooted at n.
func (n *RoadmapNode) Depth() int {
	deepest := 0
	for i := range n.Children {
		if d := n.Children[i].Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Walk visits nodes in pre-order. Returning false from fn skips the node's children.
func (n *RoadmapNode) Walk(fn func(node *RoadmapNode, depth int) bool) {
	n.walk(1, fn)
}

func (n *RoadmapNode) walk(depth int, fn func(*RoadmapNode, int) bool) {
	if !fn(n, depth) {
		return
	}
	for i := range n.Children {
		n.Children[i].walk(depth+1, fn)
	}
}

// Count returns the number of nodes in the tree.
func (n *RoadmapNode) Count() int {
	count := 0
	n.Walk(func(*RoadmapNode, int) bool {
		count++
		return true
	})
	return count
}

// Validate checks required fields and ID uniqueness across the whole tree.
func (n *RoadmapNode) Validate() error {
	var problems []string
	seen := make(map[string]bool)
	n.Walk(func(node *RoadmapNode, depth int) bool {
		if strings.TrimSpace(node.ID) == "" {
			problems = append(problems, fmt.Sprintf("node %q at depth %d has no id", node.Label, depth))
		} else if seen[node.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", node.ID))
		}
		seen[node.ID] = true
		if strings.TrimSpace(node.Label) == "" {
			problems = append(problems, fmt.Sprintf("node %q has no label", node.ID))
		}
		return true
	})
	if len(problems) > 0 {
		return errors.New("invalid roadmap: " + strings.Join(problems, "; "))
	}
	return nil
}

// Normalize returns a copy of the tree cut to maxDepth levels, with repeated
// IDs renamed in pre-order by appending -2, -3 and so on. The first occurrence
// keeps its ID. Nil skill lists become empty. A maxDepth below 1 is treated as 1.
func (n *RoadmapNode) Normalize(maxDepth int) RoadmapNode {
	if maxDepth < 1 {
		maxDepth = 1
	}
	out := n.truncate(1, maxDepth)

	taken := make(map[string]bool)
	out.Walk(func(node *RoadmapNode, _ int) bool {
		taken[node.ID] = true
		return true
	})
	used := make(map[string]bool)
	next := make(map[string]int)
	out.Walk(func(node *RoadmapNode, _ int) bool {
		if node.ID == "" || !used[node.ID] {
			used[node.ID] = true
			return true
		}
		base := node.ID
		k := next[base]
		if k < 2 {
			k = 2
		}
		candidate := fmt.Sprintf("%s-%d", base, k)
		for used[candidate] || taken[candidate] {
			k++
			candidate = fmt.Sprintf("%s-%d", base, k)
		}
		next[base] = k + 1
		node.ID = candidate
		used[candidate] = true
		return true
	})
	return out
}

func (n *RoadmapNode) truncate(depth, maxDepth int) RoadmapNode {
	out := RoadmapNode{
		ID:          n.ID,
		Label:       n.Label,
		Description: n.Description,
		Duration:    n.Duration,
		Skills:      append([]string{}, n.Skills...),
	}
	if depth >= maxDepth || len(n.Children) == 0 {
		return out
	}
	out.Children = make([]RoadmapNode, len(n.Children))
	for i := range n.Children {
		out.Children[i] = n.Children[i].truncate(depth+1, maxDepth)
	}
	return out
}
