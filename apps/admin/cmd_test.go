package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/quiz"
	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
	"github.com/ElabeidiTech/LearnHub-sub000/testutil"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv(t)
	return &commandLine{
		db:      &sql.DB{}, // never used: migrations are mocked
		usrRepo: env.UserRepo,
		expirer: env.Quizzes,
		logger:  env.Logger,
	}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) run(t *testing.T, cli *commandLine) error {
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(tt.pwd), nil }
	err := cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
	return err
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	runMigrationsFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "course_tags", "sql"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) { _ = tt.run(t, cli) })
	}

	t.Run("memory engine", func(t *testing.T) {
		memCli := *cli
		memCli.db = nil
		_ = cliTest{args: []string{"migrate", "up"}, wantErr: errNoDatabase}.run(t, &memCli)
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-name", "Root"}, pwd: testutil.Password, wantErr: errHelp},
		{name: "bad role", args: []string{"adduser", "-name", "Root", "-email", "root@example.com", "-role", "dean"}, pwd: testutil.Password, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-name", "Root", "-email", "root@example.com"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) { _ = tt.run(t, cli) })
	}

	_ = cliTest{args: []string{"adduser", "-name", " Root ", "-email", "ROOT@example.com"}, pwd: testutil.Password}.run(t, cli)
	root, err := env.UserRepo.GetUser(ctx, user.GetFilter{Email: "root@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Root", root.FullName)
	assert.Equal(t, user.RoleAdmin, root.Role)
	assert.Equal(t, user.StatusApproved, root.Status)
	assert.NoError(t, root.CheckPassword(testutil.Password))

	// existing accounts are updated & approved
	teacher := env.CreateUser(t, "Teacher", "teacher@example.com", user.RoleTeacher, user.StatusPending)
	_ = cliTest{args: []string{"adduser", "-name", "Teacher", "-email", teacher.Email, "-role", "teacher"}, pwd: "n3w-Pa55w0rd"}.run(t, cli)
	updated, err := env.UserRepo.GetUser(ctx, user.GetFilter{ID: teacher.ID})
	require.NoError(t, err)
	assert.Equal(t, user.RoleTeacher, updated.Role)
	assert.Equal(t, user.StatusApproved, updated.Status)
	assert.NoError(t, updated.CheckPassword("n3w-Pa55w0rd"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)
	usr := env.CreateUser(t, "User", "awe@test.cd", user.RoleStudent, user.StatusApproved)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, pwd: "lmao"},
		{name: "case insensitive email", args: []string{"resetpassword", "-email", "AWE@test.cd"}, pwd: "lmao-2"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(t, cli); err != nil {
				return
			}
			refreshedUsr, err := env.UserRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.False(t, bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash), "failed to update new password")
			assert.NoError(t, refreshedUsr.CheckPassword(tt.pwd))
		})
	}
}

func Test_commandLine_sweepAttempts(t *testing.T) {
	cli, env := setup(t)
	ctx := context.Background()
	teacher := env.CreateUser(t, "Teacher", "teacher@example.com", user.RoleTeacher, user.StatusApproved)
	student := env.CreateUser(t, "Student", "student@example.com", user.RoleStudent, user.StatusApproved)
	crs := env.CreateCourse(t, teacher, "Maths", student)

	qz, _, err := env.Quizzes.Create(ctx, teacher.Identity(), crs.ID, quiz.NewQuiz{
		Title: "Quick", TimeLimit: 1, MaxAttempts: 1,
		Questions: []quiz.NewQuestion{{Text: "1 + 1?", OptionA: "2", OptionB: "3", OptionC: "4", OptionD: "5", CorrectAnswer: "A", Points: 5}},
	})
	require.NoError(t, err)
	sess, err := env.Quizzes.Enter(ctx, student.Identity(), qz.ID)
	require.NoError(t, err)

	// still running: nothing to sweep
	_ = cliTest{args: []string{"sweepattempts"}}.run(t, cli)
	att, err := env.QuizRepo.GetAttempt(ctx, quiz.AttemptFilter{ID: sess.Attempt.ID})
	require.NoError(t, err)
	assert.False(t, att.IsCompleted())

	// travel past the time limit and the grace window
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return time.Now().Add(time.Hour) }
	t.Cleanup(func() { core.NowFunc = orig })

	_ = cliTest{args: []string{"sweepattempts"}}.run(t, cli)
	att, err = env.QuizRepo.GetAttempt(ctx, quiz.AttemptFilter{ID: sess.Attempt.ID})
	require.NoError(t, err)
	assert.True(t, att.IsCompleted())
	assert.Equal(t, 0, att.Score)
}
