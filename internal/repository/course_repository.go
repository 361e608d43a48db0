package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
)

// CourseRepository reads the course catalog and tracks seat consumption.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// ListWithPrerequisites loads the given courses and their prerequisite edges.
func (r *CourseRepository) ListWithPrerequisites(ctx context.Context, ids []string) ([]models.Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const courseQuery = `SELECT id, code, name, credits, capacity, enrolled_count, active, minimum_year_level
	FROM courses WHERE id = ANY($1) ORDER BY code`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, courseQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	if len(courses) == 0 {
		return courses, nil
	}

	const prereqQuery = `SELECT cp.course_id, cp.prerequisite_course_id, pc.code AS prerequisite_code
	FROM course_prerequisites cp
	JOIN courses pc ON pc.id = cp.prerequisite_course_id
	WHERE cp.course_id = ANY($1)
	ORDER BY pc.code`
	var edges []models.Prerequisite
	if err := r.db.SelectContext(ctx, &edges, prereqQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}

	index := make(map[string]int, len(courses))
	for i := range courses {
		index[courses[i].ID] = i
	}
	for _, edge := range edges {
		if i, ok := index[edge.CourseID]; ok {
			courses[i].Prerequisites = append(courses[i].Prerequisites, edge)
		}
	}
	return courses, nil
}

// IncrementEnrolled consumes one seat in every listed course.
func (r *CourseRepository) IncrementEnrolled(ctx context.Context, exec sqlx.ExtContext, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE courses SET enrolled_count = enrolled_count + 1 WHERE id = ANY($1)`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("increment enrolled count: %w", err)
	}
	return nil
}
