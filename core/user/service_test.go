package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/assignment"
	"github.com/ElabeidiTech/LearnHub-sub000/core/course"
	"github.com/ElabeidiTech/LearnHub-sub000/core/quiz"
	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
	"github.com/ElabeidiTech/LearnHub-sub000/testutil"
)

func TestService_Register(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		role       string
		email      string
		wantStatus string
	}{
		{name: "student is approved", role: user.RoleStudent, email: "pupil@example.com", wantStatus: user.StatusApproved},
		{name: "teacher is pending", role: user.RoleTeacher, email: "prof@example.com", wantStatus: user.StatusPending},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			usr, err := env.Users.Register(ctx, user.NewUser{
				FullName: "Jane Doe",
				Email:    tc.email,
				Role:     tc.role,
				Password: testutil.Password,
			})
			require.NoError(t, err)
			assert.NotEmpty(t, usr.ID)
			assert.Equal(t, tc.wantStatus, usr.Status)
			assert.NoError(t, usr.CheckPassword(testutil.Password))
		})
	}

	t.Run("duplicate email", func(t *testing.T) {
		_, err := env.Users.Register(ctx, user.NewUser{
			FullName: "Jane Again",
			Email:    "pupil@example.com",
			Role:     user.RoleStudent,
			Password: testutil.Password,
		})
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr))
		require.Len(t, verr.Fields, 1)
		assert.Equal(t, "email", verr.Fields[0].Field)
	})
}

func TestNewUser_Validate(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	env.CreateUser(t, "Taken", "taken@example.com", user.RoleStudent, user.StatusApproved)

	tests := []struct {
		name    string
		nu      user.NewUser
		wantErr bool
	}{
		{
			name: "valid",
			nu:   user.NewUser{FullName: " Ann ", Email: " ANN@example.com ", Role: "Student", Password: testutil.Password, PasswordConfirm: testutil.Password},
		},
		{
			name:    "admin role refused",
			nu:      user.NewUser{FullName: "Ann", Email: "ann2@example.com", Role: user.RoleAdmin, Password: testutil.Password, PasswordConfirm: testutil.Password},
			wantErr: true,
		},
		{
			name:    "passwords differ",
			nu:      user.NewUser{FullName: "Ann", Email: "ann3@example.com", Role: user.RoleStudent, Password: testutil.Password, PasswordConfirm: "nope"},
			wantErr: true,
		},
		{
			name:    "email taken",
			nu:      user.NewUser{FullName: "Ann", Email: "taken@example.com", Role: user.RoleStudent, Password: testutil.Password, PasswordConfirm: testutil.Password},
			wantErr: true,
		},
		{
			name:    "blank name",
			nu:      user.NewUser{FullName: "   ", Email: "ann4@example.com", Role: user.RoleTeacher, Password: testutil.Password, PasswordConfirm: testutil.Password},
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.nu.Validate(ctx, env.Validate, env.Users)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Ann", tc.nu.FullName)
			assert.Equal(t, "ann@example.com", tc.nu.Email)
			assert.Equal(t, user.RoleStudent, tc.nu.Role)
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	env.CreateUser(t, "Student", "student@example.com", user.RoleStudent, user.StatusApproved)
	env.CreateUser(t, "Pending", "pending@example.com", user.RoleTeacher, user.StatusPending)
	env.CreateUser(t, "Rejected", "rejected@example.com", user.RoleTeacher, user.StatusRejected)
	env.CreateUser(t, "Suspended", "suspended@example.com", user.RoleTeacher, user.StatusSuspended)

	tests := []struct {
		name    string
		email   string
		pwd     string
		wantErr error
	}{
		{name: "student", email: "student@example.com", pwd: testutil.Password},
		{name: "case insensitive email", email: " STUDENT@example.com", pwd: testutil.Password},
		{name: "pending teacher may sign in", email: "pending@example.com", pwd: testutil.Password},
		{name: "wrong password", email: "student@example.com", pwd: "wrong", wantErr: user.ErrInvalidCredentials},
		{name: "unknown email", email: "ghost@example.com", pwd: testutil.Password, wantErr: user.ErrInvalidCredentials},
		{name: "rejected", email: "rejected@example.com", pwd: testutil.Password, wantErr: user.ErrAccountRejected},
		{name: "suspended", email: "suspended@example.com", pwd: testutil.Password, wantErr: user.ErrAccountSuspended},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			usr, err := env.Users.Authenticate(ctx, tc.email, tc.pwd)
			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.False(t, usr.LastLogin.IsZero())
		})
	}
}

func TestService_TeacherTransitions(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	admin := env.CreateUser(t, "Admin", "admin@example.com", user.RoleAdmin, user.StatusApproved).Identity()

	t.Run("approve", func(t *testing.T) {
		env.Mail.Reset()
		teacher := env.CreateUser(t, "Teach", "teach1@example.com", user.RoleTeacher, user.StatusPending)

		usr, err := env.Users.ApproveTeacher(ctx, admin, teacher.ID)
		require.NoError(t, err)
		assert.Equal(t, user.StatusApproved, usr.Status)
		require.NotNil(t, usr.VerifiedAt)
		assert.Equal(t, admin.ID, usr.VerifiedBy)

		rec, err := env.Users.GetVerification(ctx, teacher.ID)
		require.NoError(t, err)
		assert.Equal(t, user.StatusApproved, rec.Status)
		assert.Equal(t, admin.ID, rec.ReviewedBy)

		sent := env.Mail.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "teacher_approved", sent[0].TemplateName)
		assert.Equal(t, teacher.Email, sent[0].To[0].Address)

		_, err = env.Users.ApproveTeacher(ctx, admin, teacher.ID)
		assert.True(t, core.IsConflict(err), "approving twice must conflict")
	})

	t.Run("reject", func(t *testing.T) {
		env.Mail.Reset()
		teacher := env.CreateUser(t, "Teach", "teach2@example.com", user.RoleTeacher, user.StatusPending)

		usr, err := env.Users.RejectTeacher(ctx, admin, teacher.ID, user.RejectTeacher{Reason: "  no credentials "})
		require.NoError(t, err)
		assert.Equal(t, user.StatusRejected, usr.Status)

		rec, err := env.Users.GetVerification(ctx, teacher.ID)
		require.NoError(t, err)
		assert.Equal(t, "no credentials", rec.Reason)

		sent := env.Mail.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "teacher_rejected", sent[0].TemplateName)
		assert.Contains(t, sent[0].TextContent, "no credentials")

		_, err = env.Users.SuspendTeacher(ctx, admin, teacher.ID)
		assert.True(t, core.IsConflict(err))
	})

	t.Run("suspend and unsuspend", func(t *testing.T) {
		env.Mail.Reset()
		teacher := env.CreateUser(t, "Teach", "teach3@example.com", user.RoleTeacher, user.StatusApproved)

		usr, err := env.Users.SuspendTeacher(ctx, admin, teacher.ID)
		require.NoError(t, err)
		assert.Equal(t, user.StatusSuspended, usr.Status)
		require.Len(t, env.Mail.Sent(), 1)
		assert.Equal(t, "teacher_suspended", env.Mail.Sent()[0].TemplateName)

		usr, err = env.Users.UnsuspendTeacher(ctx, admin, teacher.ID)
		require.NoError(t, err)
		assert.Equal(t, user.StatusApproved, usr.Status)

		_, err = env.Users.UnsuspendTeacher(ctx, admin, teacher.ID)
		assert.True(t, core.IsConflict(err))
	})

	t.Run("students are not teachers", func(t *testing.T) {
		student := env.CreateUser(t, "Pupil", "pupil@example.com", user.RoleStudent, user.StatusApproved)
		_, err := env.Users.ApproveTeacher(ctx, admin, student.ID)
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("no verification yet", func(t *testing.T) {
		teacher := env.CreateUser(t, "Teach", "teach4@example.com", user.RoleTeacher, user.StatusPending)
		_, err := env.Users.GetVerification(ctx, teacher.ID)
		assert.Equal(t, user.ErrVerificationNotFound, errors.Cause(err))
	})
}

func TestService_Delete(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	admin := env.CreateUser(t, "Admin", "admin@example.com", user.RoleAdmin, user.StatusApproved)
	teacher := env.CreateUser(t, "Teach", "teach@example.com", user.RoleTeacher, user.StatusApproved)
	student := env.CreateUser(t, "Pupil", "pupil@example.com", user.RoleStudent, user.StatusApproved)
	crs := env.CreateCourse(t, teacher, "Algebra", student)

	asg, err := env.Assignments.Create(ctx, teacher.Identity(), crs.ID, assignment.NewAssignment{
		Title:       "Homework",
		DueDate:     core.Now().Add(24 * time.Hour),
		TotalPoints: 10,
	}, testutil.Upload("brief.pdf", "brief"))
	require.NoError(t, err)
	sub, err := env.Assignments.Submit(ctx, student.Identity(), asg.ID, assignment.NewSubmission{}, testutil.Upload("answer.pdf", "answer"))
	require.NoError(t, err)

	t.Run("self", func(t *testing.T) {
		err := env.Users.Delete(ctx, admin.Identity(), admin.ID)
		assert.True(t, core.IsConflict(err))
	})

	t.Run("unknown", func(t *testing.T) {
		err := env.Users.Delete(ctx, admin.Identity(), "5e6a4f9e-1b7c-4b8e-9f2d-000000000000")
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("student removes their submission file", func(t *testing.T) {
		require.NoError(t, env.Users.Delete(ctx, admin.Identity(), student.ID))

		ok, err := env.Files.Exists(ctx, sub.FilePath)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = env.Files.Exists(ctx, asg.FilePath)
		require.NoError(t, err)
		assert.True(t, ok)

		students, err := env.Courses.ListStudents(ctx, teacher.Identity(), crs.ID)
		require.NoError(t, err)
		assert.Empty(t, students)
	})

	// another teacher's content, with a student of their own
	other := env.CreateUser(t, "Other", "other@example.com", user.RoleTeacher, user.StatusApproved)
	otherStudent := env.CreateUser(t, "Learner", "learner@example.com", user.RoleStudent, user.StatusApproved)
	otherCrs := env.CreateCourse(t, other, "Geometry", otherStudent)
	otherMat, err := env.Courses.AddMaterial(ctx, other.Identity(), otherCrs.ID, course.NewMaterial{Title: "Notes"}, testutil.Upload("notes.pdf", "notes"))
	require.NoError(t, err)
	otherAsg, err := env.Assignments.Create(ctx, other.Identity(), otherCrs.ID, assignment.NewAssignment{
		Title:       "Triangles",
		DueDate:     core.Now().Add(24 * time.Hour),
		TotalPoints: 10,
	}, nil)
	require.NoError(t, err)
	otherSub, err := env.Assignments.Submit(ctx, otherStudent.Identity(), otherAsg.ID, assignment.NewSubmission{}, testutil.Upload("proof.pdf", "proof"))
	require.NoError(t, err)
	otherQz, _, err := env.Quizzes.Create(ctx, other.Identity(), otherCrs.ID, quiz.NewQuiz{
		Title: "Angles", TimeLimit: 10, MaxAttempts: 1,
		Questions: []quiz.NewQuestion{{Text: "Right angle?", OptionA: "90", OptionB: "45", OptionC: "180", OptionD: "60", CorrectAnswer: "A", Points: 5}},
	})
	require.NoError(t, err)

	t.Run("teacher removes owned courses", func(t *testing.T) {
		require.NoError(t, env.Users.Delete(ctx, admin.Identity(), teacher.ID))

		ok, err := env.Files.Exists(ctx, asg.FilePath)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = env.Courses.Get(ctx, admin.Identity(), crs.ID)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("other teachers are untouched", func(t *testing.T) {
		_, err := env.Courses.Get(ctx, other.Identity(), otherCrs.ID)
		assert.NoError(t, err)
		students, err := env.Courses.ListStudents(ctx, other.Identity(), otherCrs.ID)
		require.NoError(t, err)
		assert.Len(t, students, 1)

		mats, err := env.Courses.ListMaterials(ctx, other.Identity(), otherCrs.ID)
		require.NoError(t, err)
		require.Len(t, mats, 1)
		assert.Equal(t, otherMat.ID, mats[0].ID)

		subs, err := env.Assignments.ListSubmissions(ctx, other.Identity(), otherAsg.ID)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, otherSub.ID, subs[0].ID)

		_, _, err = env.Quizzes.Get(ctx, other.Identity(), otherQz.ID)
		assert.NoError(t, err)

		for _, path := range []string{otherMat.FilePath, otherSub.FilePath} {
			ok, err := env.Files.Exists(ctx, path)
			require.NoError(t, err)
			assert.True(t, ok, path)
		}
	})
}

func TestService_DeleteAccount(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	admin := env.CreateUser(t, "Admin", "admin@example.com", user.RoleAdmin, user.StatusApproved)
	teacher := env.CreateUser(t, "Teach", "teach@example.com", user.RoleTeacher, user.StatusPending)

	err := env.Users.DeleteAccount(ctx, admin, user.DeleteAccount{Password: testutil.Password})
	assert.True(t, core.IsConflict(err))

	err = env.Users.DeleteAccount(ctx, teacher, user.DeleteAccount{Password: "wrong"})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "password", verr.Fields[0].Field)

	require.NoError(t, env.Users.DeleteAccount(ctx, teacher, user.DeleteAccount{Password: testutil.Password}))
	_, err = env.Users.GetByID(ctx, teacher.ID)
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}

func TestService_PasswordReset(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr := env.CreateUser(t, "Pupil", "pupil@example.com", user.RoleStudent, user.StatusApproved)
	env.CreateUser(t, "Gone", "gone@example.com", user.RoleTeacher, user.StatusSuspended)

	t.Run("unknown email", func(t *testing.T) {
		err := env.Users.RequestPasswordReset(ctx, "ghost@example.com")
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("suspended account", func(t *testing.T) {
		err := env.Users.RequestPasswordReset(ctx, "gone@example.com")
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("reset", func(t *testing.T) {
		env.Mail.Reset()
		require.NoError(t, env.Users.RequestPasswordReset(ctx, usr.Email))
		sent := env.Mail.Sent()
		require.Len(t, sent, 1)
		data, ok := sent[0].TemplateData.(map[string]string)
		require.True(t, ok)

		rp := user.ResetUserPassword{
			UID:             data["UID"],
			Token:           data["Token"],
			Password:        "N3w-Tr1cky-Pa55w0rd",
			PasswordConfirm: "N3w-Tr1cky-Pa55w0rd",
		}
		require.NoError(t, env.Users.ResetPassword(ctx, rp))

		_, err := env.Users.Authenticate(ctx, usr.Email, rp.Password)
		require.NoError(t, err)

		// the token is spent once the password changed
		err = env.Users.ResetPassword(ctx, rp)
		var verr *core.ValidationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("garbage uid", func(t *testing.T) {
		err := env.Users.ResetPassword(ctx, user.ResetUserPassword{UID: "???", Token: "x-y", Password: "a", PasswordConfirm: "a"})
		var verr *core.ValidationError
		assert.True(t, errors.As(err, &verr))
	})
}
