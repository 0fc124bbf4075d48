package assignment

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/course"
	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("assignment not found")
	ErrSubmissionNotFound = core.NewNotFoundError("submission not found")
	ErrAlreadyGraded      = core.NewValidationError(errors.New("submission already graded"))
	ErrFileRequired       = core.NewValidationError(nil, core.FieldError{Field: "file", Error: "file required"})
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, asg Assignment, exec ...core.DBExecutor) (Assignment, error)
		GetAssignment(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Assignment, error)
		UpdateAssignment(ctx context.Context, asg Assignment, exec ...core.DBExecutor) (Assignment, error)
		// DeleteAssignment removes the assignment and its submissions; it returns the storage paths they referenced.
		DeleteAssignment(ctx context.Context, id string, exec ...core.DBExecutor) ([]string, error)
		QueryAssignments(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Assignment, error)
		// MaxGrade returns the highest grade given on the assignment, 0 when nothing is graded.
		MaxGrade(ctx context.Context, assignmentID string, exec ...core.DBExecutor) (float64, error)

		// CreateSubmission returns a core.ConflictError when the student already submitted.
		CreateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
		GetSubmission(ctx context.Context, filter SubmissionFilter, exec ...core.DBExecutor) (Submission, error)
		UpdateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
		QuerySubmissions(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]Submission, error)
	}

	Service struct {
		repo   Repository
		gate   course.Gate
		files  core.FileStorage
		logger core.Logger
	}
)

func NewService(repo Repository, gate course.Gate, files core.FileStorage, logger core.Logger) *Service {
	return &Service{
		repo:   repo,
		gate:   gate,
		files:  files,
		logger: logger,
	}
}

// scoped returns a filter restricted to what actor may see; ok is false when actor may see nothing.
func scoped(actor user.Identity, id string) (filter GetFilter, ok bool) {
	filter.ID = id
	switch {
	case actor.IsAdmin():
	case actor.IsActiveTeacher():
		filter.TeacherID = actor.ID
	case actor.IsStudent():
		filter.StudentID = actor.ID
	default:
		return filter, false
	}
	return filter, true
}

func (svc *Service) storeFile(ctx context.Context, kind, ownerID string, upload *core.Upload) (string, error) {
	path, err := svc.files.Store(ctx, kind, ownerID, *upload)
	if err != nil {
		return "", core.NewStorageError(err, "storing "+kind)
	}
	return path, nil
}

func (svc *Service) Create(ctx context.Context, actor user.Identity, courseID string, na NewAssignment, upload *core.Upload) (Assignment, error) {
	if _, err := svc.gate.ManagedCourse(ctx, actor, courseID); err != nil {
		return Assignment{}, err
	}

	now := core.Now()
	asg := Assignment{
		CourseID:    courseID,
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.DueDate,
		TotalPoints: na.TotalPoints,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if upload != nil {
		path, err := svc.storeFile(ctx, core.FileKindAssignment, courseID, upload)
		if err != nil {
			return Assignment{}, err
		}
		asg.FilePath, asg.FileName = path, upload.Name
	}

	created, err := svc.repo.CreateAssignment(ctx, asg)
	if err != nil {
		core.RemoveFiles(ctx, svc.files, svc.logger, asg.FilePath)
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}
	return created, nil
}

// Update changes the assignment; a new upload replaces the previous attachment.
func (svc *Service) Update(ctx context.Context, actor user.Identity, id string, ua UpdateAssignment, upload *core.Upload) (Assignment, error) {
	asg, err := svc.managed(ctx, actor, id)
	if err != nil {
		return Assignment{}, err
	}

	if ua.Title != "" {
		asg.Title = ua.Title
	}
	if ua.Description != nil {
		asg.Description = *ua.Description
	}
	if ua.DueDate != nil {
		asg.DueDate = ua.DueDate.UTC()
	}
	if ua.TotalPoints > 0 && ua.TotalPoints != asg.TotalPoints {
		maxGrade, err := svc.repo.MaxGrade(ctx, asg.ID)
		if err != nil {
			return Assignment{}, errors.Wrap(err, "finding highest grade")
		}
		if maxGrade > float64(ua.TotalPoints) {
			msg := fmt.Sprintf("total points can't be lower than an existing grade (%g)", maxGrade)
			return Assignment{}, core.NewValidationError(errors.New(msg), core.FieldError{Field: "total_points", Error: msg})
		}
		asg.TotalPoints = ua.TotalPoints
	}
	oldPath := ""
	if upload != nil {
		path, err := svc.storeFile(ctx, core.FileKindAssignment, asg.CourseID, upload)
		if err != nil {
			return Assignment{}, err
		}
		oldPath = asg.FilePath
		asg.FilePath, asg.FileName = path, upload.Name
	}
	asg.UpdatedAt = core.Now()

	updated, err := svc.repo.UpdateAssignment(ctx, asg)
	if err != nil {
		if upload != nil {
			core.RemoveFiles(ctx, svc.files, svc.logger, asg.FilePath)
		}
		return Assignment{}, errors.Wrap(err, "updating assignment")
	}
	core.RemoveFiles(ctx, svc.files, svc.logger, oldPath)
	return updated, nil
}

func (svc *Service) Delete(ctx context.Context, actor user.Identity, id string) error {
	asg, err := svc.managed(ctx, actor, id)
	if err != nil {
		return err
	}
	paths, err := svc.repo.DeleteAssignment(ctx, asg.ID)
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	core.RemoveFiles(ctx, svc.files, svc.logger, paths...)
	return nil
}

func (svc *Service) managed(ctx context.Context, actor user.Identity, id string) (Assignment, error) {
	if !(actor.IsAdmin() || actor.IsActiveTeacher()) {
		return Assignment{}, ErrNotFound
	}
	filter, _ := scoped(actor, id)
	return svc.repo.GetAssignment(ctx, filter)
}

// Get returns an assignment its teacher or one of its course's students may see.
func (svc *Service) Get(ctx context.Context, actor user.Identity, id string) (Assignment, error) {
	filter, ok := scoped(actor, id)
	if !ok {
		return Assignment{}, ErrNotFound
	}
	return svc.repo.GetAssignment(ctx, filter)
}

func (svc *Service) ListForCourse(ctx context.Context, actor user.Identity, courseID string) ([]Assignment, error) {
	var err error
	if actor.IsStudent() {
		_, err = svc.gate.EnrolledCourse(ctx, actor, courseID)
	} else {
		_, err = svc.gate.ManagedCourse(ctx, actor, courseID)
	}
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryAssignments(ctx, courseID)
}

// Submit creates the student's submission or updates it in place. A file is mandatory for the first
// submission; later ones keep the previous file unless a new one is uploaded. Graded submissions are final.
func (svc *Service) Submit(ctx context.Context, actor user.Identity, assignmentID string, ns NewSubmission, upload *core.Upload) (Submission, error) {
	if !actor.IsStudent() {
		return Submission{}, ErrNotFound
	}
	asg, err := svc.repo.GetAssignment(ctx, GetFilter{ID: assignmentID, StudentID: actor.ID})
	if err != nil {
		return Submission{}, err
	}

	existing, err := svc.repo.GetSubmission(ctx, SubmissionFilter{AssignmentID: asg.ID, StudentID: actor.ID})
	found := err == nil
	if err != nil && errors.Cause(err) != ErrSubmissionNotFound {
		return Submission{}, errors.Wrap(err, "finding submission")
	}
	if found && existing.IsGraded() {
		return Submission{}, ErrAlreadyGraded
	}
	if !found && upload == nil {
		return Submission{}, ErrFileRequired
	}

	var newPath string
	if upload != nil {
		if newPath, err = svc.storeFile(ctx, core.FileKindSubmission, actor.ID, upload); err != nil {
			return Submission{}, err
		}
	}
	cleanup := func() { core.RemoveFiles(ctx, svc.files, svc.logger, newPath) }

	now := core.Now()
	if !found {
		sub, err := svc.repo.CreateSubmission(ctx, Submission{
			AssignmentID: asg.ID,
			StudentID:    actor.ID,
			FilePath:     newPath,
			FileName:     upload.Name,
			Comment:      ns.Comment,
			SubmittedAt:  now,
		})
		if err != nil {
			cleanup()
			if core.IsConflict(err) {
				return Submission{}, errors.Wrap(err, "submission raced with another request")
			}
			return Submission{}, errors.Wrap(err, "creating submission")
		}
		return sub, nil
	}

	oldPath := ""
	if upload != nil {
		oldPath = existing.FilePath
		existing.FilePath, existing.FileName = newPath, upload.Name
	}
	existing.Comment = ns.Comment
	existing.SubmittedAt = now
	sub, err := svc.repo.UpdateSubmission(ctx, existing)
	if err != nil {
		cleanup()
		return Submission{}, errors.Wrap(err, "updating submission")
	}
	core.RemoveFiles(ctx, svc.files, svc.logger, oldPath)
	return sub, nil
}

// Grade sets the grade & feedback of a submission. Regrading overwrites the previous values.
func (svc *Service) Grade(ctx context.Context, actor user.Identity, submissionID string, gs GradeSubmission) (Submission, error) {
	if !(actor.IsAdmin() || actor.IsActiveTeacher()) {
		return Submission{}, ErrSubmissionNotFound
	}
	filter := SubmissionFilter{ID: submissionID}
	if !actor.IsAdmin() {
		filter.TeacherID = actor.ID
	}
	sub, err := svc.repo.GetSubmission(ctx, filter)
	if err != nil {
		return Submission{}, err
	}
	asg, err := svc.repo.GetAssignment(ctx, GetFilter{ID: sub.AssignmentID})
	if err != nil {
		return Submission{}, errors.Wrap(err, "finding assignment")
	}

	grade := *gs.Grade
	if !(grade >= 0 && grade <= float64(asg.TotalPoints)) {
		msg := fmt.Sprintf("grade must be between 0 and %d", asg.TotalPoints)
		return Submission{}, core.NewValidationError(errors.New(msg), core.FieldError{Field: "grade", Error: msg})
	}

	now := core.Now()
	sub.Grade = &grade
	sub.Feedback = gs.Feedback
	sub.GradedAt = &now
	sub, err = svc.repo.UpdateSubmission(ctx, sub)
	return sub, errors.Wrap(err, "grading submission")
}

func (svc *Service) ListSubmissions(ctx context.Context, actor user.Identity, assignmentID string) ([]Submission, error) {
	asg, err := svc.managed(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissions(ctx, asg.ID)
}

// MySubmission returns the actor's submission for an assignment.
func (svc *Service) MySubmission(ctx context.Context, actor user.Identity, assignmentID string) (Submission, error) {
	if !actor.IsStudent() {
		return Submission{}, ErrSubmissionNotFound
	}
	return svc.repo.GetSubmission(ctx, SubmissionFilter{AssignmentID: assignmentID, StudentID: actor.ID})
}

// OpenAttachment returns the assignment and a reader over its attached file. The caller must close the reader.
func (svc *Service) OpenAttachment(ctx context.Context, actor user.Identity, assignmentID string) (Assignment, io.ReadCloser, error) {
	asg, err := svc.Get(ctx, actor, assignmentID)
	if err != nil {
		return Assignment{}, nil, err
	}
	if !asg.HasFile() {
		return Assignment{}, nil, ErrNotFound
	}
	rc, err := svc.files.Retrieve(ctx, asg.FilePath)
	if err != nil {
		if core.IsNotFound(err) {
			return Assignment{}, nil, ErrNotFound
		}
		return Assignment{}, nil, core.NewStorageError(err, "retrieving assignment file")
	}
	return asg, rc, nil
}

// OpenSubmission returns the submission and a reader over its file for the submitter or the course teacher.
// The caller must close the reader.
func (svc *Service) OpenSubmission(ctx context.Context, actor user.Identity, submissionID string) (Submission, io.ReadCloser, error) {
	filter := SubmissionFilter{ID: submissionID}
	switch {
	case actor.IsAdmin():
	case actor.IsActiveTeacher():
		filter.TeacherID = actor.ID
	case actor.IsStudent():
		filter.StudentID = actor.ID
	default:
		return Submission{}, nil, ErrSubmissionNotFound
	}
	sub, err := svc.repo.GetSubmission(ctx, filter)
	if err != nil {
		return Submission{}, nil, err
	}
	rc, err := svc.files.Retrieve(ctx, sub.FilePath)
	if err != nil {
		if core.IsNotFound(err) {
			return Submission{}, nil, ErrSubmissionNotFound
		}
		return Submission{}, nil, core.NewStorageError(err, "retrieving submission file")
	}
	return sub, rc, nil
}
