package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
)

type Assignment struct {
	ID          string    `json:"id" db:"id"`
	CourseID    string    `json:"course_id" db:"course_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	FilePath    string    `json:"-" db:"file_path"`
	FileName    string    `json:"file_name,omitempty" db:"file_name"`
	DueDate     time.Time `json:"due_date" db:"due_date"`
	TotalPoints int       `json:"total_points" db:"total_points"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func (a Assignment) HasFile() bool { return a.FilePath != "" }

type Submission struct {
	ID           string     `json:"id"`
	AssignmentID string     `json:"assignment_id"`
	StudentID    string     `json:"student_id"`
	StudentName  string     `json:"student_name,omitempty"`
	FilePath     string     `json:"-"`
	FileName     string     `json:"file_name"`
	Comment      string     `json:"comment"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	Grade        *float64   `json:"grade"`
	Feedback     string     `json:"feedback"`
	GradedAt     *time.Time `json:"graded_at"`
	IsLate       bool       `json:"is_late"`
}

func (s Submission) IsGraded() bool { return s.Grade != nil }

type NewAssignment struct {
	Title       string    `json:"title" form:"title" validate:"required,notblank,max=200"`
	Description string    `json:"description" form:"description" validate:"omitempty,max=10000"`
	DueDate     time.Time `json:"due_date" form:"due_date" validate:"required"`
	TotalPoints int       `json:"total_points" form:"total_points" validate:"required,min=1,max=10000"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.DueDate = na.DueDate.UTC()
	return validate.Struct(na)
}

// UpdateAssignment leaves zero-valued fields untouched.
type UpdateAssignment struct {
	Title       string     `json:"title" form:"title" validate:"omitempty,max=200"`
	Description *string    `json:"description" form:"description" validate:"omitempty,max=10000"`
	DueDate     *time.Time `json:"due_date" form:"due_date"`
	TotalPoints int        `json:"total_points" form:"total_points" validate:"omitempty,min=1,max=10000"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanString(ua.Title)
	if ua.Description != nil {
		desc := core.CleanString(*ua.Description)
		ua.Description = &desc
	}
	return validate.Struct(ua)
}

type NewSubmission struct {
	Comment string `json:"comment" form:"comment" validate:"omitempty,max=5000"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.Comment = core.CleanString(ns.Comment)
	return validate.Struct(ns)
}

type GradeSubmission struct {
	Grade    *float64 `json:"grade" form:"grade" validate:"required"`
	Feedback string   `json:"feedback" form:"feedback" validate:"omitempty,max=5000"`
}

func (gs *GradeSubmission) Validate(validate *validator.Validate) error {
	gs.Feedback = core.CleanString(gs.Feedback)
	return validate.Struct(gs)
}

// GetFilter selects a single Assignment. TeacherID restricts it to the teacher's courses and
// StudentID to the courses the student is enrolled in.
type GetFilter struct {
	ID        string
	TeacherID string
	StudentID string
}

// SubmissionFilter selects a single Submission by ID, or by AssignmentID + StudentID.
// StudentID and TeacherID also restrict an ID lookup to the submitter / the course teacher.
type SubmissionFilter struct {
	ID           string
	AssignmentID string
	StudentID    string
	TeacherID    string
}
