// Package dedupe classifies duplicate sibling folders in a tree snapshot.
//
// Both detectors are pure functions over a hierarchy snapshot: no I/O, no
// mutation, deterministic output order. Exact detection groups siblings by
// case-sensitive name; suffix detection groups siblings whose names differ
// only by a trailing " (N)" marker left behind by naive sync tools.
package dedupe

import (
	"regexp"
	"sort"
	"strconv"

	"curator/internal/hierarchy"
)

// Group is one set of duplicate sibling folders under a common parent.
// TargetID is the member the others should be merged into; SourceIDs lists
// the remaining members in merge order.
type Group struct {
	Name      string
	ParentID  string
	FolderIDs []string
	TargetID  string
	SourceIDs []string
}

var suffixPattern = regexp.MustCompile(`^(.*) \((\d+)\)$`)

// SplitSuffix returns the base name and suffix number of an incremented
// duplicate name like "Acme (2)". ok is false when the name carries no
// suffix marker.
func SplitSuffix(name string) (base string, n int, ok bool) {
	match := suffixPattern.FindStringSubmatch(name)
	if match == nil {
		return name, 0, false
	}
	value, err := strconv.Atoi(match[2])
	if err != nil {
		return name, 0, false
	}
	return match[1], value, true
}

// DetectExact returns one group per parent and name shared by two or more
// sibling folders. The merge target is the member with the most child
// folders, then the smallest id, so merging moves the fewest items.
func DetectExact(tree *hierarchy.Tree) []Group {
	var groups []Group
	tree.Walk(func(parent *hierarchy.FolderNode) {
		byName := make(map[string][]*hierarchy.FolderNode)
		for _, child := range parent.Children {
			byName[child.Name] = append(byName[child.Name], child)
		}
		for name, members := range byName {
			if len(members) < 2 {
				continue
			}
			sort.Slice(members, func(i, j int) bool {
				if len(members[i].Children) != len(members[j].Children) {
					return len(members[i].Children) > len(members[j].Children)
				}
				return members[i].ID < members[j].ID
			})
			groups = append(groups, newGroup(name, parent.ID, members))
		}
	})
	sortGroups(groups)
	return groups
}

// DetectSuffix returns one group per parent and base name where siblings
// collide after stripping a trailing " (N)". The target is the unsuffixed
// base when present, otherwise the member with the lowest suffix number.
func DetectSuffix(tree *hierarchy.Tree) []Group {
	var groups []Group
	tree.Walk(func(parent *hierarchy.FolderNode) {
		type member struct {
			node   *hierarchy.FolderNode
			suffix int
			plain  bool
		}
		byBase := make(map[string][]member)
		for _, child := range parent.Children {
			base, n, ok := SplitSuffix(child.Name)
			if ok {
				byBase[base] = append(byBase[base], member{node: child, suffix: n})
			} else {
				byBase[child.Name] = append(byBase[child.Name], member{node: child, plain: true})
			}
		}
		for base, members := range byBase {
			suffixed := 0
			for _, m := range members {
				if !m.plain {
					suffixed++
				}
			}
			// A lone base name plus nothing suffixed is not a collision, and
			// exact-name duplicates are the other detector's business.
			if len(members) < 2 || suffixed == 0 {
				continue
			}
			sort.Slice(members, func(i, j int) bool {
				if members[i].plain != members[j].plain {
					return members[i].plain
				}
				if members[i].suffix != members[j].suffix {
					return members[i].suffix < members[j].suffix
				}
				return members[i].node.ID < members[j].node.ID
			})
			nodes := make([]*hierarchy.FolderNode, 0, len(members))
			for _, m := range members {
				nodes = append(nodes, m.node)
			}
			groups = append(groups, newGroup(base, parent.ID, nodes))
		}
	})
	sortGroups(groups)
	return groups
}

func newGroup(name, parentID string, members []*hierarchy.FolderNode) Group {
	group := Group{
		Name:     name,
		ParentID: parentID,
		TargetID: members[0].ID,
	}
	for _, member := range members {
		group.FolderIDs = append(group.FolderIDs, member.ID)
	}
	group.SourceIDs = group.FolderIDs[1:]
	return group
}

func sortGroups(groups []Group) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].ParentID != groups[j].ParentID {
			return groups[i].ParentID < groups[j].ParentID
		}
		return groups[i].Name < groups[j].Name
	})
}
