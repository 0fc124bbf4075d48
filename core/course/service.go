package course

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("course not found")
	ErrMaterialNotFound = core.NewNotFoundError("material not found")
	ErrAlreadyEnrolled  = core.NewConflictError("you are already enrolled in this course")
	ErrCodeTaken        = core.NewConflictError("a course with this code already exists")
	ErrTeachersOnly     = core.NewPermissionError("only approved teachers can create courses")
	ErrStudentsOnly     = core.NewPermissionError("only students can join courses")
	errFileRequired     = core.NewValidationError(nil, core.FieldError{Field: "file", Error: "file required"})

	codeAttempts  = 5
	newCourseCode = func() string { // mockable
		return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	}
)

type (
	// MaterialFilter selects a single Material; TeacherID / StudentID restrict it through the owning course.
	MaterialFilter struct {
		ID        string
		TeacherID string
		StudentID string
	}

	Repository interface {
		// CreateCourse returns ErrCodeTaken when the code is already used.
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		GetCourse(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		// DeleteCourse removes the course and its content; it returns the storage paths the removed rows referenced.
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) ([]string, error)
		// QueryTeacherCourses lists the courses of a teacher (all courses when teacherID is empty).
		QueryTeacherCourses(ctx context.Context, teacherID string, exec ...core.DBExecutor) ([]Summary, error)
		QueryStudentCourses(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]Summary, error)
		// CreateEnrollment returns ErrAlreadyEnrolled when the pair already exists.
		CreateEnrollment(ctx context.Context, enr Enrollment, exec ...core.DBExecutor) error
		EnrollmentExists(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (bool, error)
		QueryStudents(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Student, error)
		CreateMaterial(ctx context.Context, mat Material, exec ...core.DBExecutor) (Material, error)
		GetMaterial(ctx context.Context, filter MaterialFilter, exec ...core.DBExecutor) (Material, error)
		QueryMaterials(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Material, error)
		DeleteMaterial(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		tx     core.Transactor
		repo   Repository
		files  core.FileStorage
		logger core.Logger
	}
)

var _ Gate = (*Service)(nil)

func NewService(tx core.Transactor, repo Repository, files core.FileStorage, logger core.Logger) *Service {
	return &Service{
		tx:     tx,
		repo:   repo,
		files:  files,
		logger: logger,
	}
}

// ManagedCourse returns the course if actor may manage it. Ownership is part of the lookup itself,
// so a course owned by someone else is reported as not found.
func (svc *Service) ManagedCourse(ctx context.Context, actor user.Identity, courseID string) (Course, error) {
	filter := GetFilter{ID: courseID}
	switch {
	case actor.IsAdmin():
	case actor.IsActiveTeacher():
		filter.TeacherID = actor.ID
	default:
		return Course{}, ErrNotFound
	}
	crs, err := svc.repo.GetCourse(ctx, filter)
	if err != nil {
		return Course{}, err
	}
	if !CanManage(actor, crs) {
		return Course{}, ErrNotFound
	}
	return crs, nil
}

// EnrolledCourse returns the course if actor is a student enrolled in it.
func (svc *Service) EnrolledCourse(ctx context.Context, actor user.Identity, courseID string) (Course, error) {
	if !actor.IsStudent() {
		return Course{}, ErrNotFound
	}
	return svc.repo.GetCourse(ctx, GetFilter{ID: courseID, StudentID: actor.ID})
}

// Get returns a course its manager or one of its students may see.
func (svc *Service) Get(ctx context.Context, actor user.Identity, courseID string) (Course, error) {
	if actor.IsStudent() {
		return svc.EnrolledCourse(ctx, actor, courseID)
	}
	return svc.ManagedCourse(ctx, actor, courseID)
}

func (svc *Service) Create(ctx context.Context, actor user.Identity, nc NewCourse) (Course, error) {
	if !actor.IsActiveTeacher() {
		return Course{}, ErrTeachersOnly
	}

	now := core.Now()
	crs := Course{
		TeacherID:   actor.ID,
		Code:        nc.Code,
		Name:        nc.Name,
		Description: nc.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if crs.Code != "" {
		created, err := svc.repo.CreateCourse(ctx, crs)
		if err != nil {
			if errors.Cause(err) == ErrCodeTaken {
				return Course{}, core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
			}
			return Course{}, errors.Wrap(err, "creating course")
		}
		return created, nil
	}

	// generated codes may collide; retry a few times before giving up
	var err error
	for i := 0; i < codeAttempts; i++ {
		crs.Code = newCourseCode()
		var created Course
		if created, err = svc.repo.CreateCourse(ctx, crs); err == nil {
			return created, nil
		}
		if errors.Cause(err) != ErrCodeTaken {
			return Course{}, errors.Wrap(err, "creating course")
		}
	}
	return Course{}, errors.Wrap(err, "generating course code")
}

func (svc *Service) Update(ctx context.Context, crs Course, uc UpdateCourse) (Course, error) {
	crs.Name = uc.Name
	if uc.Description != nil {
		crs.Description = *uc.Description
	}
	crs.UpdatedAt = core.Now()
	return svc.repo.UpdateCourse(ctx, crs)
}

// Delete removes a course with its enrollments, assignments, submissions, quizzes, attempts and materials.
func (svc *Service) Delete(ctx context.Context, actor user.Identity, courseID string) error {
	var paths []string
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.ManagedCourse(ctx, actor, courseID); err != nil {
			return err
		}
		var err error
		paths, err = svc.repo.DeleteCourse(ctx, courseID, exec)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	core.RemoveFiles(ctx, svc.files, svc.logger, paths...)
	return nil
}

// ListManaged lists the actor's own courses; admins see every course.
func (svc *Service) ListManaged(ctx context.Context, actor user.Identity) ([]Summary, error) {
	switch {
	case actor.IsAdmin():
		return svc.repo.QueryTeacherCourses(ctx, "")
	case actor.IsActiveTeacher():
		return svc.repo.QueryTeacherCourses(ctx, actor.ID)
	}
	return []Summary{}, nil
}

func (svc *Service) ListEnrolled(ctx context.Context, actor user.Identity) ([]Summary, error) {
	if !actor.IsStudent() {
		return []Summary{}, nil
	}
	return svc.repo.QueryStudentCourses(ctx, actor.ID)
}

// Join enrolls the student in the course holding code.
func (svc *Service) Join(ctx context.Context, actor user.Identity, jc JoinCourse) (Course, error) {
	if !actor.IsStudent() {
		return Course{}, ErrStudentsOnly
	}
	crs, err := svc.repo.GetCourse(ctx, GetFilter{Code: jc.Code})
	if err != nil {
		return Course{}, err
	}

	exists, err := svc.repo.EnrollmentExists(ctx, actor.ID, crs.ID)
	if err != nil {
		return Course{}, errors.Wrap(err, "checking enrollment")
	}
	if exists {
		return Course{}, ErrAlreadyEnrolled
	}

	// the unique (student_id, course_id) constraint settles concurrent joins
	enr := Enrollment{StudentID: actor.ID, CourseID: crs.ID, EnrolledAt: core.Now()}
	if err = svc.repo.CreateEnrollment(ctx, enr); err != nil {
		if errors.Cause(err) == ErrAlreadyEnrolled {
			return Course{}, ErrAlreadyEnrolled
		}
		return Course{}, errors.Wrap(err, "creating enrollment")
	}
	return crs, nil
}

func (svc *Service) ListStudents(ctx context.Context, actor user.Identity, courseID string) ([]Student, error) {
	if _, err := svc.ManagedCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryStudents(ctx, courseID)
}

// AddMaterial stores upload and records it as course material.
func (svc *Service) AddMaterial(ctx context.Context, actor user.Identity, courseID string, nm NewMaterial, upload *core.Upload) (Material, error) {
	if _, err := svc.ManagedCourse(ctx, actor, courseID); err != nil {
		return Material{}, err
	}
	if upload == nil {
		return Material{}, errFileRequired
	}

	path, err := svc.files.Store(ctx, core.FileKindMaterial, courseID, *upload)
	if err != nil {
		return Material{}, core.NewStorageError(err, "storing material")
	}
	mat, err := svc.repo.CreateMaterial(ctx, Material{
		CourseID:    courseID,
		Title:       nm.Title,
		Description: nm.Description,
		FilePath:    path,
		FileName:    upload.Name,
		FileSize:    upload.Size,
		UploadedAt:  core.Now(),
	})
	if err != nil {
		core.RemoveFiles(ctx, svc.files, svc.logger, path)
		return Material{}, errors.Wrap(err, "creating material")
	}
	return mat, nil
}

func (svc *Service) ListMaterials(ctx context.Context, actor user.Identity, courseID string) ([]Material, error) {
	if _, err := svc.Get(ctx, actor, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMaterials(ctx, courseID)
}

func (svc *Service) DeleteMaterial(ctx context.Context, actor user.Identity, materialID string) error {
	mat, err := svc.getMaterial(ctx, actor, materialID)
	if err != nil {
		return err
	}
	if actor.IsStudent() {
		return ErrMaterialNotFound
	}
	if err = svc.repo.DeleteMaterial(ctx, mat.ID); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	core.RemoveFiles(ctx, svc.files, svc.logger, mat.FilePath)
	return nil
}

// OpenMaterial returns the material and a reader over its file for its teacher or an enrolled student.
// The caller must close the reader.
func (svc *Service) OpenMaterial(ctx context.Context, actor user.Identity, materialID string) (Material, io.ReadCloser, error) {
	mat, err := svc.getMaterial(ctx, actor, materialID)
	if err != nil {
		return Material{}, nil, err
	}
	rc, err := svc.files.Retrieve(ctx, mat.FilePath)
	if err != nil {
		if core.IsNotFound(err) {
			return Material{}, nil, ErrMaterialNotFound
		}
		return Material{}, nil, core.NewStorageError(err, "retrieving material")
	}
	return mat, rc, nil
}

func (svc *Service) getMaterial(ctx context.Context, actor user.Identity, materialID string) (Material, error) {
	filter := MaterialFilter{ID: materialID}
	switch {
	case actor.IsAdmin():
	case actor.IsActiveTeacher():
		filter.TeacherID = actor.ID
	case actor.IsStudent():
		filter.StudentID = actor.ID
	default:
		return Material{}, ErrMaterialNotFound
	}
	return svc.repo.GetMaterial(ctx, filter)
}
