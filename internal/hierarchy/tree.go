package hierarchy

import (
	"sort"
	"strings"
	"time"
)

// FolderNode is one folder of a tree snapshot. Snapshots are immutable:
// after any mutating drive operation a fresh tree is built rather than
// patching nodes in place.
type FolderNode struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	ParentID string        `json:"parent_id,omitempty"`
	Children []*FolderNode `json:"children,omitempty"`
}

// Tree is an indexed snapshot of the remote folder hierarchy.
type Tree struct {
	Root    *FolderNode
	BuiltAt time.Time
	// Source records where the snapshot came from: "live" or "cache".
	Source string

	byID map[string]*FolderNode
}

// NewTree indexes root and returns the snapshot wrapper.
func NewTree(root *FolderNode, builtAt time.Time, source string) *Tree {
	t := &Tree{
		Root:    root,
		BuiltAt: builtAt,
		Source:  source,
		byID:    make(map[string]*FolderNode),
	}
	t.index(root)
	return t
}

func (t *Tree) index(node *FolderNode) {
	if node == nil {
		return
	}
	t.byID[node.ID] = node
	for _, child := range node.Children {
		t.index(child)
	}
}

// NodeByID returns the folder with the given id, or nil.
func (t *Tree) NodeByID(id string) *FolderNode {
	return t.byID[id]
}

// Path returns the slash-joined name path from the root to the folder with
// the given id. The path is recomputed from structure, never stored.
func (t *Tree) Path(id string) string {
	node := t.byID[id]
	if node == nil {
		return ""
	}
	var names []string
	for node != nil {
		names = append(names, node.Name)
		if node.ParentID == "" {
			break
		}
		node = t.byID[node.ParentID]
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/")
}

// Walk visits every folder in the snapshot, parents before children.
func (t *Tree) Walk(visit func(*FolderNode)) {
	var walk func(*FolderNode)
	walk = func(node *FolderNode) {
		if node == nil {
			return
		}
		visit(node)
		for _, child := range node.Children {
			walk(child)
		}
	}
	walk(t.Root)
}

// FolderCount returns the number of folders in the snapshot including the root.
func (t *Tree) FolderCount() int {
	return len(t.byID)
}

// FolderNames returns the distinct folder names in the snapshot, sorted.
// The root name is excluded since it is never a mapping candidate.
func (t *Tree) FolderNames() []string {
	seen := make(map[string]struct{})
	t.Walk(func(node *FolderNode) {
		if node == t.Root {
			return
		}
		seen[node.Name] = struct{}{}
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
