// Package threads rebuilds discussion reply trees from a flat message list.
package threads

import (
	"sort"

	"campusevents/structs"
)

// Build links msgs into a forest. Input order does not matter. A message whose
// parent is absent from msgs is returned as a root rather than dropped.
// Roots are ordered pinned first, then newest first; replies at every depth
// are ordered oldest first.
func Build(msgs []structs.DiscussionMessage) []*structs.DiscussionMessage {
	nodes := make(map[string]*structs.DiscussionMessage, len(msgs))
	order := make([]*structs.DiscussionMessage, 0, len(msgs))
	for i := range msgs {
		n := msgs[i]
		n.Replies = []*structs.DiscussionMessage{}
		nodes[n.MessageID] = &n
		order = append(order, &n)
	}

	roots := []*structs.DiscussionMessage{}
	for _, n := range order {
		if n.ParentMessage != "" && n.ParentMessage != n.MessageID {
			if parent, ok := nodes[n.ParentMessage]; ok && !createsCycle(nodes, n) {
				parent.Replies = append(parent.Replies, n)
				continue
			}
		}
		roots = append(roots, n)
	}

	sort.SliceStable(roots, func(i, j int) bool {
		if roots[i].IsPinned != roots[j].IsPinned {
			return roots[i].IsPinned
		}
		return roots[i].CreatedAt.After(roots[j].CreatedAt)
	})
	for _, r := range roots {
		sortReplies(r)
	}
	return roots
}

func sortReplies(n *structs.DiscussionMessage) {
	sort.SliceStable(n.Replies, func(i, j int) bool {
		return n.Replies[i].CreatedAt.Before(n.Replies[j].CreatedAt)
	})
	for _, r := range n.Replies {
		sortReplies(r)
	}
}

// createsCycle walks the parent chain of n and reports whether it returns to n.
func createsCycle(nodes map[string]*structs.DiscussionMessage, n *structs.DiscussionMessage) bool {
	seen := map[string]bool{n.MessageID: true}
	cur := n.ParentMessage
	for cur != "" {
		if seen[cur] {
			return true
		}
		seen[cur] = true
		p, ok := nodes[cur]
		if !ok {
			return false
		}
		cur = p.ParentMessage
	}
	return false
}

// Count returns the number of messages in the forest.
func Count(roots []*structs.DiscussionMessage) int {
	total := 0
	for _, r := range roots {
		total += 1 + Count(r.Replies)
	}
	return total
}
