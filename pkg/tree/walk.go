package tree

// Walk visits every node of the forest in pre-order. Returning false from fn
// skips the node's descendants.
func Walk(roots []*Node, fn func(*Node) bool) {
	for _, n := range roots {
		if n == nil {
			continue
		}
		if fn(n) {
			Walk(n.Children, fn)
		}
	}
}

// Find resolves an ID anywhere in the forest.
func Find(roots []*Node, id string) *Node {
	var found *Node
	Walk(roots, func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Subtree returns the node's ID followed by the IDs of all of its descendants.
func Subtree(node *Node) []string {
	if node == nil {
		return nil
	}
	return IDs([]*Node{node})
}

// IDs enumerates every ID in the forest in pre-order.
func IDs(roots []*Node) []string {
	var ids []string
	Walk(roots, func(n *Node) bool {
		ids = append(ids, n.ID)
		return true
	})
	return ids
}

// Count counts all nodes in the forest.
func Count(roots []*Node) int {
	count := 0
	Walk(roots, func(*Node) bool {
		count++
		return true
	})
	return count
}

// Prune returns a copy of the forest with the listed nodes and their subtrees removed.
// Nodes untouched by the removal are shared with the input; directories on the path
// to a removed node are copied, so the input forest is never modified. Nil entries
// are dropped.
func Prune(roots []*Node, remove map[string]struct{}) []*Node {
	out, _ := prune(roots, remove)
	return out
}

func prune(nodes []*Node, remove map[string]struct{}) ([]*Node, bool) {
	changed := false
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			changed = true
			continue
		}
		if _, ok := remove[n.ID]; ok {
			changed = true
			continue
		}
		if len(n.Children) > 0 {
			children, childChanged := prune(n.Children, remove)
			if childChanged {
				cp := *n
				cp.Children = children
				out = append(out, &cp)
				changed = true
				continue
			}
		}
		out = append(out, n)
	}
	return out, changed
}

// Index maps every ID in the forest to its node.
func Index(roots []*Node) map[string]*Node {
	result := make(map[string]*Node)
	Walk(roots, func(n *Node) bool {
		result[n.ID] = n
		return true
	})
	return result
}
