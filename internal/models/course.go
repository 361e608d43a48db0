package models

// Course is a catalog entry as seen by enrollment validation.
type Course struct {
	ID               string  `db:"id" json:"id"`
	Code             string  `db:"code" json:"code"`
	Name             string  `db:"name" json:"name"`
	Credits          int     `db:"credits" json:"credits"`
	Capacity         int     `db:"capacity" json:"capacity"`
	EnrolledCount    int     `db:"enrolled_count" json:"enrolled_count"`
	Active           bool    `db:"active" json:"active"`
	MinimumYearLevel *string `db:"minimum_year_level" json:"minimum_year_level,omitempty"`

	Prerequisites []Prerequisite `db:"-" json:"prerequisites,omitempty"`
}

// Prerequisite is an edge from a course to a course that must be completed first.
type Prerequisite struct {
	CourseID             string `db:"course_id" json:"-"`
	PrerequisiteCourseID string `db:"prerequisite_course_id" json:"course_id"`
	PrerequisiteCode     string `db:"prerequisite_code" json:"code"`
}

// IsFull reports whether no seat is left.
func (c Course) IsFull() bool {
	return c.EnrolledCount >= c.Capacity
}

var yearLevelRanks = map[string]int{
	"Freshman":  1,
	"Sophomore": 2,
	"Junior":    3,
	"Senior":    4,
	"Graduate":  5,
}

// YearLevelRank returns the ordinal of a year level name and false for unknown names.
func YearLevelRank(level string) (int, bool) {
	rank, ok := yearLevelRanks[level]
	return rank, ok
}

// IsYearLevelSufficient compares a student's year level against a course minimum.
// A missing or unrecognised level on either side is insufficient.
func IsYearLevelSufficient(studentLevel *string, required string) bool {
	if studentLevel == nil || *studentLevel == "" {
		return false
	}
	have, ok := YearLevelRank(*studentLevel)
	if !ok {
		return false
	}
	want, ok := YearLevelRank(required)
	if !ok {
		return false
	}
	return have >= want
}
