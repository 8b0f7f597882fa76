package member

import "errors"

var (
	ErrNotFound                      = errors.New("person not found")
	ErrInvalidRoleSectionCombination = errors.New("only children and animators can be enrolled in a section")
	ErrRoleCategoryMismatch          = errors.New("role used in the wrong category")
	ErrUnknownRole                   = errors.New("unknown role")
	ErrSectionNotFound               = errors.New("section not found")
	ErrDuplicateEnrollment           = errors.New("more than one enrollment for the same school year")
	ErrMissingCurrentSchoolYear      = errors.New("no school year covers today")
	ErrUnknownNextSchoolYear         = errors.New("next school year not created yet")
	ErrSchoolYearExists              = errors.New("this school year already exists")
	ErrParentChildCycle              = errors.New("a person cannot be their own parent or ancestor")
	ErrNotParent                     = errors.New("this person is not a parent of the child")
	ErrDetachNotAllowed              = errors.New("the child would be left without a responsible parent")
)
