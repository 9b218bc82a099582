package testutil

import (
	"testing"

	"github.com/trezcool/darasa/core/entity"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
)

// AddRecord seeds a live record into the dummy store.
func AddRecord(t *testing.T, db *dummydb.DB, kind entity.Kind, id string, parent *entity.Ref) entity.Record {
	t.Helper()
	rec := entity.Record{Ref: entity.NewRef(kind, id), Parent: parent}
	db.AddRecord(rec)
	return rec
}

// RefPtr is a convenience for seeding parent references.
func RefPtr(ref entity.Ref) *entity.Ref { return &ref }

// CourseTree is a seeded ownership tree exercising every edge depth:
//
//	Course
//	├── Module ── Assignment ── Grade
//	│         └── Content
//	├── Discussion
//	├── Announcement
//	└── Enrollment
type CourseTree struct {
	Course       entity.Ref
	Module       entity.Ref
	Assignment   entity.Ref
	Grade        entity.Ref
	Content      entity.Ref
	Discussion   entity.Ref
	Announcement entity.Ref
	Enrollment   entity.Ref
}

// All returns every ref in the tree, owners before owned.
func (tree CourseTree) All() []entity.Ref {
	return []entity.Ref{
		tree.Course,
		tree.Module,
		tree.Assignment,
		tree.Grade,
		tree.Content,
		tree.Discussion,
		tree.Announcement,
		tree.Enrollment,
	}
}

// SeedCourseTree populates db with one course and a full descendant chain.
func SeedCourseTree(t *testing.T, db *dummydb.DB) CourseTree {
	t.Helper()

	course := AddRecord(t, db, entity.Course, "c1", nil)
	module := AddRecord(t, db, entity.Module, "m1", RefPtr(course.Ref))
	assignment := AddRecord(t, db, entity.Assignment, "a1", RefPtr(module.Ref))
	grade := AddRecord(t, db, entity.Grade, "g1", RefPtr(assignment.Ref))
	content := AddRecord(t, db, entity.CourseContent, "cc1", RefPtr(module.Ref))
	discussion := AddRecord(t, db, entity.Discussion, "d1", RefPtr(course.Ref))
	announcement := AddRecord(t, db, entity.Announcement, "an1", RefPtr(course.Ref))
	enrollment := AddRecord(t, db, entity.Enrollment, "e1", RefPtr(course.Ref))

	return CourseTree{
		Course:       course.Ref,
		Module:       module.Ref,
		Assignment:   assignment.Ref,
		Grade:        grade.Ref,
		Content:      content.Ref,
		Discussion:   discussion.Ref,
		Announcement: announcement.Ref,
		Enrollment:   enrollment.Ref,
	}
}
