package assignment_test

import (
	"context"
	"io/ioutil"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/assignment"
	"github.com/ElabeidiTech/LearnHub-sub000/core/course"
	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
	"github.com/ElabeidiTech/LearnHub-sub000/testutil"
)

type fixture struct {
	env      *testutil.Env
	teacher  user.User
	other    user.User
	student  user.User
	outsider user.User
	course   course.Course
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	f := fixture{
		env:      env,
		teacher:  env.CreateUser(t, "Teacher", "teacher@example.com", user.RoleTeacher, user.StatusApproved),
		other:    env.CreateUser(t, "Other", "other@example.com", user.RoleTeacher, user.StatusApproved),
		student:  env.CreateUser(t, "Student", "student@example.com", user.RoleStudent, user.StatusApproved),
		outsider: env.CreateUser(t, "Outsider", "outsider@example.com", user.RoleStudent, user.StatusApproved),
	}
	f.course = env.CreateCourse(t, f.teacher, "Literature", f.student)
	return f
}

func (f fixture) newAssignment(t *testing.T, due time.Time, upload *core.Upload) assignment.Assignment {
	t.Helper()
	asg, err := f.env.Assignments.Create(context.Background(), f.teacher.Identity(), f.course.ID, assignment.NewAssignment{
		Title:       "Book report",
		DueDate:     due,
		TotalPoints: 50,
	}, upload)
	require.NoError(t, err)
	return asg
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	due := core.Now().Add(72 * time.Hour)

	t.Run("with attachment", func(t *testing.T) {
		asg := f.newAssignment(t, due, testutil.Upload("brief.pdf", "read chapter 1"))
		assert.Equal(t, "brief.pdf", asg.FileName)
		assert.True(t, asg.HasFile())

		_, rc, err := f.env.Assignments.OpenAttachment(ctx, f.student.Identity(), asg.ID)
		require.NoError(t, err)
		content, _ := ioutil.ReadAll(rc)
		_ = rc.Close()
		assert.Equal(t, "read chapter 1", string(content))

		_, _, err = f.env.Assignments.OpenAttachment(ctx, f.outsider.Identity(), asg.ID)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("without attachment", func(t *testing.T) {
		asg := f.newAssignment(t, due, nil)
		assert.False(t, asg.HasFile())

		_, _, err := f.env.Assignments.OpenAttachment(ctx, f.student.Identity(), asg.ID)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("someone else's course", func(t *testing.T) {
		_, err := f.env.Assignments.Create(ctx, f.other.Identity(), f.course.ID, assignment.NewAssignment{
			Title: "Nope", DueDate: due, TotalPoints: 1,
		}, nil)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("listing", func(t *testing.T) {
		asgs, err := f.env.Assignments.ListForCourse(ctx, f.student.Identity(), f.course.ID)
		require.NoError(t, err)
		assert.Len(t, asgs, 2)

		_, err = f.env.Assignments.ListForCourse(ctx, f.outsider.Identity(), f.course.ID)
		assert.True(t, core.IsNotFound(err))
	})
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	asg := f.newAssignment(t, core.Now().Add(time.Hour), testutil.Upload("v1.pdf", "v1"))

	newDue := core.Now().Add(96 * time.Hour)
	updated, err := f.env.Assignments.Update(ctx, f.teacher.Identity(), asg.ID, assignment.UpdateAssignment{
		DueDate:     &newDue,
		TotalPoints: 80,
	}, testutil.Upload("v2.pdf", "v2"))
	require.NoError(t, err)
	assert.Equal(t, asg.Title, updated.Title)
	assert.Equal(t, 80, updated.TotalPoints)
	assert.True(t, newDue.Equal(updated.DueDate))
	assert.Equal(t, "v2.pdf", updated.FileName)

	ok, err := f.env.Files.Exists(ctx, asg.FilePath)
	require.NoError(t, err)
	assert.False(t, ok, "the replaced attachment is removed")

	_, err = f.env.Assignments.Update(ctx, f.student.Identity(), asg.ID, assignment.UpdateAssignment{Title: "x"}, nil)
	assert.True(t, core.IsNotFound(err))
}

func TestService_UpdateTotalPointsBelowGrades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	asg := f.newAssignment(t, core.Now().Add(time.Hour), nil)
	sub, err := f.env.Assignments.Submit(ctx, f.student.Identity(), asg.ID, assignment.NewSubmission{}, testutil.Upload("work.txt", "work"))
	require.NoError(t, err)
	grade := 45.0
	_, err = f.env.Assignments.Grade(ctx, f.teacher.Identity(), sub.ID, assignment.GradeSubmission{Grade: &grade})
	require.NoError(t, err)

	_, err = f.env.Assignments.Update(ctx, f.teacher.Identity(), asg.ID, assignment.UpdateAssignment{TotalPoints: 10}, nil)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "total_points", verr.Fields[0].Field)

	stored, err := f.env.AssignmentRepo.GetAssignment(ctx, assignment.GetFilter{ID: asg.ID})
	require.NoError(t, err)
	assert.Equal(t, 50, stored.TotalPoints)

	// lowering down to the highest grade is fine
	updated, err := f.env.Assignments.Update(ctx, f.teacher.Identity(), asg.ID, assignment.UpdateAssignment{TotalPoints: 45}, nil)
	require.NoError(t, err)
	assert.Equal(t, 45, updated.TotalPoints)
}

func TestService_Submit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := f.student.Identity()
	asg := f.newAssignment(t, core.Now().Add(24*time.Hour), nil)

	_, err := f.env.Assignments.Submit(ctx, student, asg.ID, assignment.NewSubmission{}, nil)
	assert.Equal(t, assignment.ErrFileRequired, errors.Cause(err))

	_, err = f.env.Assignments.Submit(ctx, f.outsider.Identity(), asg.ID, assignment.NewSubmission{}, testutil.Upload("a.txt", "a"))
	assert.True(t, core.IsNotFound(err))

	_, err = f.env.Assignments.Submit(ctx, f.teacher.Identity(), asg.ID, assignment.NewSubmission{}, testutil.Upload("a.txt", "a"))
	assert.True(t, core.IsNotFound(err))

	first, err := f.env.Assignments.Submit(ctx, student, asg.ID, assignment.NewSubmission{Comment: "draft"}, testutil.Upload("draft.txt", "draft"))
	require.NoError(t, err)
	assert.False(t, first.IsLate)
	assert.Equal(t, "draft.txt", first.FileName)

	// a comment-only resubmission keeps the file
	second, err := f.env.Assignments.Submit(ctx, student, asg.ID, assignment.NewSubmission{Comment: "final"}, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.FilePath, second.FilePath)
	assert.Equal(t, "final", second.Comment)

	third, err := f.env.Assignments.Submit(ctx, student, asg.ID, assignment.NewSubmission{}, testutil.Upload("final.txt", "final"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, "final.txt", third.FileName)
	ok, err := f.env.Files.Exists(ctx, first.FilePath)
	require.NoError(t, err)
	assert.False(t, ok, "the replaced file is removed")

	mine, err := f.env.Assignments.MySubmission(ctx, student, asg.ID)
	require.NoError(t, err)
	assert.Equal(t, third.FilePath, mine.FilePath)

	_, rc, err := f.env.Assignments.OpenSubmission(ctx, f.teacher.Identity(), mine.ID)
	require.NoError(t, err)
	content, _ := ioutil.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "final", string(content))

	_, _, err = f.env.Assignments.OpenSubmission(ctx, f.other.Identity(), mine.ID)
	assert.True(t, core.IsNotFound(err))
	_, _, err = f.env.Assignments.OpenSubmission(ctx, f.outsider.Identity(), mine.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_SubmitLate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	asg := f.newAssignment(t, core.Now().Add(-time.Hour), nil)

	sub, err := f.env.Assignments.Submit(ctx, f.student.Identity(), asg.ID, assignment.NewSubmission{}, testutil.Upload("late.txt", "late"))
	require.NoError(t, err)
	assert.True(t, sub.IsLate)

	subs, err := f.env.Assignments.ListSubmissions(ctx, f.teacher.Identity(), asg.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].IsLate)
	assert.Equal(t, "Student", subs[0].StudentName)
}

func TestService_Grade(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	asg := f.newAssignment(t, core.Now().Add(time.Hour), nil)
	sub, err := f.env.Assignments.Submit(ctx, f.student.Identity(), asg.ID, assignment.NewSubmission{}, testutil.Upload("work.txt", "work"))
	require.NoError(t, err)

	grade := func(v float64) *float64 { return &v }
	tests := []struct {
		name      string
		actor     user.User
		grade     *float64
		wantValid bool
		wantFound bool
	}{
		{name: "negative", actor: f.teacher, grade: grade(-1), wantValid: true},
		{name: "above total", actor: f.teacher, grade: grade(50.5), wantValid: true},
		{name: "not a number", actor: f.teacher, grade: grade(math.NaN()), wantValid: true},
		{name: "infinite", actor: f.teacher, grade: grade(math.Inf(1)), wantValid: true},
		{name: "other teacher", actor: f.other, grade: grade(10), wantFound: true},
		{name: "student", actor: f.student, grade: grade(50), wantFound: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.env.Assignments.Grade(ctx, tc.actor.Identity(), sub.ID, assignment.GradeSubmission{Grade: tc.grade})
			if tc.wantValid {
				var verr *core.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "grade", verr.Fields[0].Field)
			}
			if tc.wantFound {
				assert.True(t, core.IsNotFound(err))
			}
		})
	}

	graded, err := f.env.Assignments.Grade(ctx, f.teacher.Identity(), sub.ID, assignment.GradeSubmission{Grade: grade(42.5), Feedback: "good"})
	require.NoError(t, err)
	require.NotNil(t, graded.Grade)
	assert.Equal(t, 42.5, *graded.Grade)
	assert.Equal(t, "good", graded.Feedback)
	assert.NotNil(t, graded.GradedAt)

	regraded, err := f.env.Assignments.Grade(ctx, f.teacher.Identity(), sub.ID, assignment.GradeSubmission{Grade: grade(50)})
	require.NoError(t, err)
	assert.Equal(t, 50.0, *regraded.Grade)

	_, err = f.env.Assignments.Submit(ctx, f.student.Identity(), asg.ID, assignment.NewSubmission{}, testutil.Upload("again.txt", "again"))
	assert.Equal(t, assignment.ErrAlreadyGraded, errors.Cause(err))
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	asg := f.newAssignment(t, core.Now().Add(time.Hour), testutil.Upload("brief.pdf", "brief"))
	sub, err := f.env.Assignments.Submit(ctx, f.student.Identity(), asg.ID, assignment.NewSubmission{}, testutil.Upload("work.txt", "work"))
	require.NoError(t, err)

	err = f.env.Assignments.Delete(ctx, f.other.Identity(), asg.ID)
	assert.True(t, core.IsNotFound(err))

	require.NoError(t, f.env.Assignments.Delete(ctx, f.teacher.Identity(), asg.ID))
	for _, path := range []string{asg.FilePath, sub.FilePath} {
		ok, err := f.env.Files.Exists(ctx, path)
		require.NoError(t, err)
		assert.False(t, ok, path)
	}
	_, err = f.env.Assignments.MySubmission(ctx, f.student.Identity(), asg.ID)
	assert.True(t, core.IsNotFound(err))
}
