package entity

import "fmt"

type (
	// Relation is one ownership edge: Child records reference their owner
	// through the ForeignKey field.
	Relation struct {
		Child      Kind
		ForeignKey string
	}

	// Owner is an ownership edge seen from the child side.
	Owner struct {
		Kind       Kind
		ForeignKey string
	}
)

// relations declares the static ownership graph: a cycle-free forest
// rooted at Course and User. A kind reachable from two owners (Assignment
// under both Course and Module) carries a distinct FK per owner; at most
// one of them is set on any given row.
var relations = map[Kind][]Relation{
	Course: {
		{Module, "course_id"},
		{Assignment, "course_id"},
		{Discussion, "course_id"},
		{Announcement, "course_id"},
		{CourseContent, "course_id"},
		{Enrollment, "course_id"},
	},
	Module: {
		{Assignment, "module_id"},
		{Discussion, "module_id"},
		{CourseContent, "module_id"},
	},
	Assignment: {
		{Grade, "assignment_id"},
	},
	User:          nil,
	Grade:         nil,
	Discussion:    nil,
	Announcement:  nil,
	CourseContent: nil,
	Enrollment:    nil,
}

// owners is derived from relations; most specific owner first.
var owners map[Kind][]Owner

func init() {
	owners = make(map[Kind][]Owner, len(AllKinds))
	for kind, rels := range relations {
		for _, rel := range rels {
			owners[rel.Child] = append(owners[rel.Child], Owner{Kind: kind, ForeignKey: rel.ForeignKey})
		}
	}
	if err := checkGraph(); err != nil {
		panic(err)
	}

	// deepest owner first so effective-parent resolution prefers it
	for kind := range owners {
		ownrs := owners[kind]
		for i := 0; i < len(ownrs); i++ {
			for j := i + 1; j < len(ownrs); j++ {
				if depth(ownrs[j].Kind) > depth(ownrs[i].Kind) {
					ownrs[i], ownrs[j] = ownrs[j], ownrs[i]
				}
			}
		}
	}
}

// depth is the longest ownership path from a forest root down to kind.
func depth(kind Kind) int {
	var max int
	for _, own := range owners[kind] {
		if d := depth(own.Kind) + 1; d > max {
			max = d
		}
	}
	return max
}

// checkGraph rejects edges to unknown kinds and ownership cycles at start-up;
// the graph is static so a failure here is a programming error.
func checkGraph() error {
	known := make(map[Kind]bool, len(AllKinds))
	for _, kind := range AllKinds {
		known[kind] = true
	}
	for kind, rels := range relations {
		if !known[kind] {
			return fmt.Errorf("entity: relation declared on unknown kind %q", kind)
		}
		for _, rel := range rels {
			if !known[rel.Child] {
				return fmt.Errorf("entity: %q owns unknown kind %q", kind, rel.Child)
			}
			if rel.ForeignKey == "" {
				return fmt.Errorf("entity: %q -> %q relation has no foreign key", kind, rel.Child)
			}
		}
	}
	for _, kind := range AllKinds {
		if cyclic(kind, kind, make(map[Kind]bool)) {
			return fmt.Errorf("entity: ownership cycle through %q", kind)
		}
	}
	return nil
}

func cyclic(start, kind Kind, seen map[Kind]bool) bool {
	if seen[kind] {
		return false
	}
	seen[kind] = true
	for _, rel := range relations[kind] {
		if rel.Child == start {
			return true
		}
		if cyclic(start, rel.Child, seen) {
			return true
		}
	}
	return false
}

// ChildrenOf returns the ordered ownership edges out of kind.
func ChildrenOf(kind Kind) []Relation {
	return relations[kind]
}

// OwnersOf returns the possible owners of kind, most specific first.
func OwnersOf(kind Kind) []Owner {
	return owners[kind]
}

// ParentOf returns the nearest declared owner kind, if any.
func ParentOf(kind Kind) (Kind, bool) {
	ownrs := owners[kind]
	if len(ownrs) == 0 {
		return "", false
	}
	return ownrs[0].Kind, true
}
