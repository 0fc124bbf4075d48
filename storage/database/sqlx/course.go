package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/course"
)

const (
	courseColumns = "c.id, c.teacher_id, c.code, c.name, c.description, c.created_at, c.updated_at"

	courseSummary = `SELECT ` + courseColumns + `, u.full_name AS teacher_name,
		(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS student_count,
		(SELECT COUNT(*) FROM assignments a WHERE a.course_id = c.id) AS assignment_count,
		(SELECT COUNT(*) FROM quizzes q WHERE q.course_id = c.id) AS quiz_count
		FROM courses c JOIN users u ON u.id = c.teacher_id`

	materialColumns = "m.id, m.course_id, m.title, m.description, m.file_path, m.file_name, m.file_size, m.uploaded_at"

	courseCodeKey = "courses_code_key"
)

type courseRepository struct {
	repository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{repository{exec: exec}}
}

func trapNoRows(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	crs.ID = newID()
	q := `INSERT INTO courses (id, teacher_id, code, name, description, created_at, updated_at)
		VALUES (:id, :teacher_id, :code, :name, :description, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, crs); err != nil {
		if isUniqueViolation(err, courseCodeKey) {
			return course.Course{}, course.ErrCodeTaken
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

// courseScope restricts c (courses) to the filter's teacher / enrolled student.
func courseScope(w *where, teacherID, studentID string) {
	if teacherID != "" {
		w.add("c.teacher_id = ?", teacherID)
	}
	if studentID != "" {
		w.add("EXISTS (SELECT 1 FROM enrollments e WHERE e.course_id = c.id AND e.student_id = ?)", studentID)
	}
}

func (repo courseRepository) GetCourse(ctx context.Context, filter course.GetFilter, exec ...core.DBExecutor) (course.Course, error) {
	exe := repo.getExec(exec)
	var w where
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return course.Course{}, course.ErrNotFound
		}
		w.add("c.id = ?", filter.ID)
	case filter.Code != "":
		w.add("c.code = ?", filter.Code)
	default:
		return course.Course{}, course.ErrNotFound
	}
	courseScope(&w, filter.TeacherID, filter.StudentID)

	var crs course.Course
	q := exe.Rebind("SELECT " + courseColumns + " FROM courses c" + w.String())
	if err := sqlx.GetContext(ctx, exe, &crs, q, w.args...); err != nil {
		return course.Course{}, trapNoRows(err, course.ErrNotFound, "finding course")
	}
	return crs, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	q := "UPDATE courses SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id"
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, crs)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if err = rowsAffected(res, course.ErrNotFound); err != nil {
		return course.Course{}, err
	}
	return crs, nil
}

const deletedCourseFiles = `
	SELECT file_path FROM materials WHERE course_id = $1
	UNION ALL
	SELECT file_path FROM assignments WHERE course_id = $1 AND file_path <> ''
	UNION ALL
	SELECT s.file_path FROM submissions s JOIN assignments a ON a.id = s.assignment_id WHERE a.course_id = $1`

func (repo courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) ([]string, error) {
	if !validID(id) {
		return nil, course.ErrNotFound
	}
	exe := repo.getExec(exec)

	var paths []string
	if err := sqlx.SelectContext(ctx, exe, &paths, deletedCourseFiles, id); err != nil {
		return nil, errors.Wrap(err, "listing course files")
	}
	res, err := exe.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id)
	if err != nil {
		return nil, errors.Wrap(err, "deleting course")
	}
	if err = rowsAffected(res, course.ErrNotFound); err != nil {
		return nil, err
	}
	return paths, nil
}

func (repo courseRepository) querySummaries(ctx context.Context, exe core.DBExecutor, w where, order string) ([]course.Summary, error) {
	var summaries []course.Summary
	q := exe.Rebind(courseSummary + w.String() + " ORDER BY " + order)
	if err := sqlx.SelectContext(ctx, exe, &summaries, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	if summaries == nil {
		summaries = []course.Summary{}
	}
	return summaries, nil
}

func (repo courseRepository) QueryTeacherCourses(ctx context.Context, teacherID string, exec ...core.DBExecutor) ([]course.Summary, error) {
	var w where
	if teacherID != "" {
		w.add("c.teacher_id = ?", teacherID)
	}
	return repo.querySummaries(ctx, repo.getExec(exec), w, "c.created_at DESC")
}

func (repo courseRepository) QueryStudentCourses(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]course.Summary, error) {
	var w where
	courseScope(&w, "", studentID)
	return repo.querySummaries(ctx, repo.getExec(exec), w, "c.name ASC")
}

func (repo courseRepository) CreateEnrollment(ctx context.Context, enr course.Enrollment, exec ...core.DBExecutor) error {
	q := "INSERT INTO enrollments (student_id, course_id, enrolled_at) VALUES (:student_id, :course_id, :enrolled_at)"
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, enr); err != nil {
		if isUniqueViolation(err) {
			return course.ErrAlreadyEnrolled
		}
		return errors.Wrap(err, "inserting enrollment")
	}
	return nil
}

func (repo courseRepository) EnrollmentExists(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (bool, error) {
	if !validID(studentID) || !validID(courseID) {
		return false, nil
	}
	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2)"
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &exists, q, studentID, courseID); err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return exists, nil
}

func (repo courseRepository) QueryStudents(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.Student, error) {
	students := []course.Student{}
	q := `SELECT u.id, u.full_name, u.email, e.enrolled_at FROM enrollments e JOIN users u ON u.id = e.student_id
		WHERE e.course_id = $1 ORDER BY u.full_name ASC`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &students, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return students, nil
}

func (repo courseRepository) CreateMaterial(ctx context.Context, mat course.Material, exec ...core.DBExecutor) (course.Material, error) {
	mat.ID = newID()
	q := `INSERT INTO materials (id, course_id, title, description, file_path, file_name, file_size, uploaded_at)
		VALUES (:id, :course_id, :title, :description, :file_path, :file_name, :file_size, :uploaded_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, mat); err != nil {
		return course.Material{}, errors.Wrap(err, "inserting material")
	}
	return mat, nil
}

func (repo courseRepository) GetMaterial(ctx context.Context, filter course.MaterialFilter, exec ...core.DBExecutor) (course.Material, error) {
	if !validID(filter.ID) {
		return course.Material{}, course.ErrMaterialNotFound
	}
	exe := repo.getExec(exec)
	var w where
	w.add("m.id = ?", filter.ID)
	courseScope(&w, filter.TeacherID, filter.StudentID)

	var mat course.Material
	q := exe.Rebind("SELECT " + materialColumns + " FROM materials m JOIN courses c ON c.id = m.course_id" + w.String())
	if err := sqlx.GetContext(ctx, exe, &mat, q, w.args...); err != nil {
		return course.Material{}, trapNoRows(err, course.ErrMaterialNotFound, "finding material")
	}
	return mat, nil
}

func (repo courseRepository) QueryMaterials(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.Material, error) {
	materials := []course.Material{}
	q := "SELECT " + materialColumns + " FROM materials m WHERE m.course_id = $1 ORDER BY m.uploaded_at DESC"
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &materials, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying materials")
	}
	return materials, nil
}

func (repo courseRepository) DeleteMaterial(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return course.ErrMaterialNotFound
	}
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM materials WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return rowsAffected(res, course.ErrMaterialNotFound)
}
