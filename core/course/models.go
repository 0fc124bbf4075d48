package course

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
)

type Course struct {
	ID          string    `json:"id" db:"id"`
	TeacherID   string    `json:"teacher_id" db:"teacher_id"`
	Code        string    `json:"code" db:"code"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Summary is a Course with its listing counters.
type Summary struct {
	Course
	TeacherName     string `json:"teacher_name" db:"teacher_name"`
	StudentCount    int    `json:"student_count" db:"student_count"`
	AssignmentCount int    `json:"assignment_count" db:"assignment_count"`
	QuizCount       int    `json:"quiz_count" db:"quiz_count"`
}

type Enrollment struct {
	StudentID  string    `json:"student_id" db:"student_id"`
	CourseID   string    `json:"course_id" db:"course_id"`
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
}

// Student is an enrolled student as seen by the course teacher.
type Student struct {
	ID         string    `json:"id" db:"id"`
	FullName   string    `json:"full_name" db:"full_name"`
	Email      string    `json:"email" db:"email"`
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
}

type Material struct {
	ID          string    `json:"id" db:"id"`
	CourseID    string    `json:"course_id" db:"course_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	FilePath    string    `json:"-" db:"file_path"`
	FileName    string    `json:"file_name" db:"file_name"`
	FileSize    int64     `json:"file_size" db:"file_size"`
	UploadedAt  time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// CanManage reports whether usr may mutate crs and its content.
func CanManage(usr user.Identity, crs Course) bool {
	if usr.IsAdmin() {
		return true
	}
	return usr.IsActiveTeacher() && crs.TeacherID == usr.ID
}

// NewCourse contains information needed to create a Course. Code is generated when left empty.
type NewCourse struct {
	Name        string `json:"name" form:"name" validate:"required,notblank,max=200"`
	Code        string `json:"code" form:"code" validate:"omitempty,min=4,max=12,alphanum"`
	Description string `json:"description" form:"description" validate:"omitempty,max=5000"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Code = strings.ToUpper(core.CleanString(nc.Code))
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type UpdateCourse struct {
	Name        string  `json:"name" form:"name" validate:"omitempty,max=200"`
	Description *string `json:"description" form:"description" validate:"omitempty,max=5000"`
}

func (uc *UpdateCourse) Validate(orig Course, validate *validator.Validate) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if uc.Description != nil {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
	}
	return validate.Struct(uc)
}

type JoinCourse struct {
	Code string `json:"code" form:"code" validate:"required,notblank"`
}

func (jc *JoinCourse) Validate(validate *validator.Validate) error {
	jc.Code = strings.ToUpper(core.CleanString(jc.Code))
	return validate.Struct(jc)
}

type NewMaterial struct {
	Title       string `json:"title" form:"title" validate:"required,notblank,max=200"`
	Description string `json:"description" form:"description" validate:"omitempty,max=5000"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	return validate.Struct(nm)
}

// GetFilter selects a single Course. TeacherID / StudentID restrict the lookup to courses the
// caller owns / is enrolled in.
type GetFilter struct {
	ID        string
	Code      string
	TeacherID string
	StudentID string
}

// Gate resolves courses on behalf of an identity. Other domains use it to check access
// before touching course content.
type Gate interface {
	ManagedCourse(ctx context.Context, actor user.Identity, courseID string) (Course, error)
	EnrolledCourse(ctx context.Context, actor user.Identity, courseID string) (Course, error)
}
