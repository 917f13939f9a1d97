package entity

import "time"

// Entry is one navigation node. Nesting is capped at two levels: an
// entry either has a nil ParentID (root) or points at a root.
type Entry struct {
	ID        string    `json:"id"`
	ParentID  *string   `json:"parent_id"`
	SortNum   int       `json:"sort_num"`
	Label     string    `json:"label"`
	Icon      string    `json:"icon"`
	Target    string    `json:"target"`
	IsActive  bool      `json:"is_active"`
	IsDivider bool      `json:"is_divider"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot reports whether the entry sits at the top level of the tree.
func (e *Entry) IsRoot() bool { return e.ParentID == nil }

// EntryNode is an Entry with its ordered children and the set of role
// ids granting visibility over it. RoleIDs is populated when the forest
// is loaded and drives visibility filtering only; it is not part of the
// rendered payload.
type EntryNode struct {
	Entry
	RoleIDs  []string     `json:"role_ids,omitempty"`
	Children []*EntryNode `json:"children"`
}

// RenderedView is the per-user, role-filtered, ordered forest. It is a
// disposable value: produced on cache miss, cached as JSON, never the
// source of truth.
type RenderedView []*EntryNode

// OrderNode is one node of a client-submitted reorder forest: the entry
// id plus its new ordered children. Sibling position in the slice
// becomes the persisted sort key.
type OrderNode struct {
	ID       string      `json:"id" binding:"required"`
	Children []OrderNode `json:"children"`
}

// BuildForest turns a flat slice of nodes, already ordered by sort_num,
// into a forest. It is a single grouping pass keyed by parent id, so
// sibling order survives from the input ordering. Children whose parent
// is missing from the slice are dropped.
func BuildForest(nodes []*EntryNode) []*EntryNode {
	byID := make(map[string]*EntryNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
		if n.Children == nil {
			n.Children = []*EntryNode{}
		}
	}
	roots := make([]*EntryNode, 0, len(nodes))
	for _, n := range nodes {
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		if p, ok := byID[*n.ParentID]; ok {
			p.Children = append(p.Children, n)
		}
	}
	return roots
}

// BuildFilteredForest groups like BuildForest but keeps children whose
// parent did not survive the filter, promoting them to the top level.
// Used for filtered listings, where a label match on a child must still
// surface the child even when its parent did not match.
func BuildFilteredForest(nodes []*EntryNode) []*EntryNode {
	byID := make(map[string]*EntryNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
		if n.Children == nil {
			n.Children = []*EntryNode{}
		}
	}
	roots := make([]*EntryNode, 0, len(nodes))
	for _, n := range nodes {
		if n.ParentID != nil {
			if p, ok := byID[*n.ParentID]; ok {
				p.Children = append(p.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

// VisibleForest filters a forest down to what the given role set may
// see. A node is visible when it is active and at least one of roleIDs
// grants it; children follow the same rule, and a visible root with no
// visible children is kept. Dividers are not special-cased. The input
// forest is not modified and ordering is preserved as-is.
func VisibleForest(forest []*EntryNode, roleIDs []string) RenderedView {
	held := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		held[id] = struct{}{}
	}
	view := RenderedView{}
	for _, root := range forest {
		if !visible(root, held) {
			continue
		}
		cp := &EntryNode{Entry: root.Entry, Children: []*EntryNode{}}
		for _, child := range root.Children {
			if visible(child, held) {
				cc := &EntryNode{Entry: child.Entry, Children: []*EntryNode{}}
				cp.Children = append(cp.Children, cc)
			}
		}
		view = append(view, cp)
	}
	return view
}

func visible(n *EntryNode, held map[string]struct{}) bool {
	if !n.IsActive {
		return false
	}
	for _, id := range n.RoleIDs {
		if _, ok := held[id]; ok {
			return true
		}
	}
	return false
}
