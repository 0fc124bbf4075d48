package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/assignment"
)

const (
	assignmentColumns = `a.id, a.course_id, a.title, a.description, a.file_path, a.file_name, a.due_date,
		a.total_points, a.created_at, a.updated_at`

	submissionSelect = `SELECT s.id, s.assignment_id, s.student_id, u.full_name AS student_name, s.file_path,
		s.file_name, s.comment, s.submitted_at, s.grade, s.feedback, s.graded_at, s.submitted_at > a.due_date AS is_late
		FROM submissions s
		JOIN assignments a ON a.id = s.assignment_id
		JOIN courses c ON c.id = a.course_id
		JOIN users u ON u.id = s.student_id`
)

type submissionRow struct {
	ID           string       `db:"id"`
	AssignmentID string       `db:"assignment_id"`
	StudentID    string       `db:"student_id"`
	StudentName  string       `db:"student_name"`
	FilePath     string       `db:"file_path"`
	FileName     string       `db:"file_name"`
	Comment      string       `db:"comment"`
	SubmittedAt  time.Time    `db:"submitted_at"`
	Grade        null.Float64 `db:"grade"`
	Feedback     string       `db:"feedback"`
	GradedAt     null.Time    `db:"graded_at"`
	IsLate       bool         `db:"is_late"`
}

func toSubmissionRow(sub assignment.Submission) submissionRow {
	return submissionRow{
		ID:           sub.ID,
		AssignmentID: sub.AssignmentID,
		StudentID:    sub.StudentID,
		FilePath:     sub.FilePath,
		FileName:     sub.FileName,
		Comment:      sub.Comment,
		SubmittedAt:  sub.SubmittedAt.UTC(),
		Grade:        null.Float64FromPtr(sub.Grade),
		Feedback:     sub.Feedback,
		GradedAt:     null.TimeFromPtr(sub.GradedAt),
	}
}

func (row submissionRow) toSubmission() assignment.Submission {
	sub := assignment.Submission{
		ID:           row.ID,
		AssignmentID: row.AssignmentID,
		StudentID:    row.StudentID,
		StudentName:  row.StudentName,
		FilePath:     row.FilePath,
		FileName:     row.FileName,
		Comment:      row.Comment,
		SubmittedAt:  row.SubmittedAt.UTC(),
		Grade:        row.Grade.Ptr(),
		Feedback:     row.Feedback,
		IsLate:       row.IsLate,
	}
	if row.GradedAt.Valid {
		t := row.GradedAt.Time.UTC()
		sub.GradedAt = &t
	}
	return sub
}

type assignmentRepository struct {
	repository
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(exec core.DBExecutor) *assignmentRepository {
	return &assignmentRepository{repository{exec: exec}}
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	asg.ID = newID()
	q := `INSERT INTO assignments (id, course_id, title, description, file_path, file_name, due_date, total_points,
		created_at, updated_at)
		VALUES (:id, :course_id, :title, :description, :file_path, :file_name, :due_date, :total_points,
		:created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, asg); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return asg, nil
}

func (repo assignmentRepository) GetAssignment(ctx context.Context, filter assignment.GetFilter, exec ...core.DBExecutor) (assignment.Assignment, error) {
	if !validID(filter.ID) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	exe := repo.getExec(exec)
	var w where
	w.add("a.id = ?", filter.ID)
	courseScope(&w, filter.TeacherID, filter.StudentID)

	var asg assignment.Assignment
	q := exe.Rebind("SELECT " + assignmentColumns + " FROM assignments a JOIN courses c ON c.id = a.course_id" + w.String())
	if err := sqlx.GetContext(ctx, exe, &asg, q, w.args...); err != nil {
		return assignment.Assignment{}, trapNoRows(err, assignment.ErrNotFound, "finding assignment")
	}
	return asg, nil
}

func (repo assignmentRepository) UpdateAssignment(ctx context.Context, asg assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	q := `UPDATE assignments SET title = :title, description = :description, file_path = :file_path,
		file_name = :file_name, due_date = :due_date, total_points = :total_points, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, asg)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if err = rowsAffected(res, assignment.ErrNotFound); err != nil {
		return assignment.Assignment{}, err
	}
	return asg, nil
}

func (repo assignmentRepository) DeleteAssignment(ctx context.Context, id string, exec ...core.DBExecutor) ([]string, error) {
	if !validID(id) {
		return nil, assignment.ErrNotFound
	}
	exe := repo.getExec(exec)

	var paths []string
	q := `SELECT file_path FROM assignments WHERE id = $1 AND file_path <> ''
		UNION ALL
		SELECT file_path FROM submissions WHERE assignment_id = $1`
	if err := sqlx.SelectContext(ctx, exe, &paths, q, id); err != nil {
		return nil, errors.Wrap(err, "listing assignment files")
	}
	res, err := exe.ExecContext(ctx, "DELETE FROM assignments WHERE id = $1", id)
	if err != nil {
		return nil, errors.Wrap(err, "deleting assignment")
	}
	if err = rowsAffected(res, assignment.ErrNotFound); err != nil {
		return nil, err
	}
	return paths, nil
}

func (repo assignmentRepository) QueryAssignments(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]assignment.Assignment, error) {
	assignments := []assignment.Assignment{}
	q := "SELECT " + assignmentColumns + " FROM assignments a WHERE a.course_id = $1 ORDER BY a.due_date ASC"
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &assignments, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return assignments, nil
}

func (repo assignmentRepository) MaxGrade(ctx context.Context, assignmentID string, exec ...core.DBExecutor) (float64, error) {
	var maxGrade float64
	q := "SELECT COALESCE(MAX(grade), 0) FROM submissions WHERE assignment_id = $1 AND grade IS NOT NULL"
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &maxGrade, q, assignmentID); err != nil {
		return 0, errors.Wrap(err, "finding highest grade")
	}
	return maxGrade, nil
}

func (repo assignmentRepository) CreateSubmission(ctx context.Context, sub assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	sub.ID = newID()
	q := `INSERT INTO submissions (id, assignment_id, student_id, file_path, file_name, comment, submitted_at,
		grade, feedback, graded_at)
		VALUES (:id, :assignment_id, :student_id, :file_path, :file_name, :comment, :submitted_at,
		:grade, :feedback, :graded_at)`
	exe := repo.getExec(exec)
	if _, err := sqlx.NamedExecContext(ctx, exe, q, toSubmissionRow(sub)); err != nil {
		if isUniqueViolation(err) {
			return assignment.Submission{}, core.NewConflictError("you already submitted this assignment")
		}
		return assignment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return repo.GetSubmission(ctx, assignment.SubmissionFilter{ID: sub.ID}, exe)
}

func (repo assignmentRepository) GetSubmission(ctx context.Context, filter assignment.SubmissionFilter, exec ...core.DBExecutor) (assignment.Submission, error) {
	exe := repo.getExec(exec)
	var w where
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return assignment.Submission{}, assignment.ErrSubmissionNotFound
		}
		w.add("s.id = ?", filter.ID)
	case filter.AssignmentID != "" && filter.StudentID != "":
		if !validID(filter.AssignmentID) {
			return assignment.Submission{}, assignment.ErrSubmissionNotFound
		}
		w.add("s.assignment_id = ?", filter.AssignmentID)
	default:
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	if filter.StudentID != "" {
		w.add("s.student_id = ?", filter.StudentID)
	}
	if filter.TeacherID != "" {
		w.add("c.teacher_id = ?", filter.TeacherID)
	}

	var row submissionRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(submissionSelect+w.String()), w.args...); err != nil {
		return assignment.Submission{}, trapNoRows(err, assignment.ErrSubmissionNotFound, "finding submission")
	}
	return row.toSubmission(), nil
}

func (repo assignmentRepository) UpdateSubmission(ctx context.Context, sub assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	q := `UPDATE submissions SET file_path = :file_path, file_name = :file_name, comment = :comment,
		submitted_at = :submitted_at, grade = :grade, feedback = :feedback, graded_at = :graded_at
		WHERE id = :id`
	exe := repo.getExec(exec)
	res, err := sqlx.NamedExecContext(ctx, exe, q, toSubmissionRow(sub))
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "updating submission")
	}
	if err = rowsAffected(res, assignment.ErrSubmissionNotFound); err != nil {
		return assignment.Submission{}, err
	}
	return repo.GetSubmission(ctx, assignment.SubmissionFilter{ID: sub.ID}, exe)
}

func (repo assignmentRepository) QuerySubmissions(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]assignment.Submission, error) {
	var rows []submissionRow
	q := submissionSelect + " WHERE s.assignment_id = $1 ORDER BY s.submitted_at DESC"
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]assignment.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.toSubmission())
	}
	return subs, nil
}
