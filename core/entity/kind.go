package entity

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

var ErrUnknownKind = errors.New("unknown model kind")

// Kind identifies one of the persisted model kinds. Its value doubles as
// the backing table name.
type Kind string

const (
	User          Kind = "user"
	Course        Kind = "course"
	Module        Kind = "module"
	Assignment    Kind = "assignment"
	Grade         Kind = "grade"
	Discussion    Kind = "discussion"
	CourseContent Kind = "course_content"
	Announcement  Kind = "announcement"
	Enrollment    Kind = "enrollment"
)

var AllKinds = []Kind{
	User,
	Course,
	Module,
	Assignment,
	Grade,
	Discussion,
	CourseContent,
	Announcement,
	Enrollment,
}

var (
	modelKindTag  = "modelkind"
	modelKindText = "invalid model kind"
)

func init() {
	// register validators
	_ = core.Validate.RegisterValidation(modelKindTag, modelKindValidation)
	core.RegisterCustomTranslation(modelKindTag, modelKindText)
}

// ParseKind maps raw (CLI, API) input to a known Kind.
func ParseKind(s string) (Kind, error) {
	kind := Kind(core.CleanString(s, true /* lower */))
	for _, k := range AllKinds {
		if kind == k {
			return k, nil
		}
	}
	return "", ErrUnknownKind
}

// modelKindValidation checks that the provided value is a known Kind.
func modelKindValidation(fl validator.FieldLevel) bool {
	_, err := ParseKind(fl.Field().String())
	return err == nil
}
