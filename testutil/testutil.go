// Package testutil wires the services on the in-memory engine for tests.
package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/assignment"
	"github.com/ElabeidiTech/LearnHub-sub000/core/course"
	"github.com/ElabeidiTech/LearnHub-sub000/core/quiz"
	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
	emailsvc "github.com/ElabeidiTech/LearnHub-sub000/services/email"
	logsvc "github.com/ElabeidiTech/LearnHub-sub000/services/logger"
	dummydb "github.com/ElabeidiTech/LearnHub-sub000/storage/database/dummy"
	"github.com/ElabeidiTech/LearnHub-sub000/storage/files"
)

const Password = "Tr1cky-Pa55w0rd"

var assetsOnce sync.Once

type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	DB         *dummydb.DB
	Tx         core.Transactor
	FS         afero.Fs
	Files      core.FileStorage
	Mail       *emailsvc.ConsoleServiceMock

	UserRepo       user.Repository
	CourseRepo     course.Repository
	AssignmentRepo assignment.Repository
	QuizRepo       quiz.Repository

	Users       *user.Service
	Courses     *course.Service
	Assignments *assignment.Service
	Quizzes     *quiz.Service
}

// NewValidator builds the validator with every custom tag & translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	return validate, translator
}

// NewEnv returns fresh services backed by an empty in-memory database & filesystem.
func NewEnv(t testing.TB) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	assetsOnce.Do(func() {
		core.ParseEmailTemplates(conf, logger)
		user.LoadCommonPasswords(conf, logger)
	})

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	validate, translator := NewValidator()
	fs := afero.NewMemMapFs()

	env := &Env{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		DB:             db,
		Tx:             dummydb.NewTransactor(db),
		FS:             fs,
		Files:          files.NewAfero(fs),
		Mail:           emailsvc.NewConsoleServiceMock(conf, logger),
		UserRepo:       dummydb.NewUserRepository(db),
		CourseRepo:     dummydb.NewCourseRepository(db),
		AssignmentRepo: dummydb.NewAssignmentRepository(db),
		QuizRepo:       dummydb.NewQuizRepository(db),
	}
	env.Users = user.NewService(env.Tx, env.UserRepo, env.Mail, env.Files, conf, logger)
	env.Courses = course.NewService(env.Tx, env.CourseRepo, env.Files, logger)
	env.Assignments = assignment.NewService(env.AssignmentRepo, env.Courses, env.Files, logger)
	env.Quizzes = quiz.NewService(env.Tx, env.QuizRepo, env.Courses, conf, logger)
	return env
}

// CreateUser stores a user straight through the repository, bypassing registration rules.
func (env *Env) CreateUser(t testing.TB, fullName, email, role, status string, createdAt ...time.Time) user.User {
	t.Helper()

	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		FullName:  fullName,
		Email:     email,
		Role:      role,
		Status:    status,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := env.UserRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateCourse creates a course owned by teacher and enrolls students in it.
func (env *Env) CreateCourse(t testing.TB, teacher user.User, name string, students ...user.User) course.Course {
	t.Helper()

	ctx := context.Background()
	crs, err := env.Courses.Create(ctx, teacher.Identity(), course.NewCourse{Name: name})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	for _, s := range students {
		if _, err = env.Courses.Join(ctx, s.Identity(), course.JoinCourse{Code: crs.Code}); err != nil {
			t.Fatalf("CreateCourse() failed: %v", err)
		}
	}
	return crs
}

// Upload returns an in-memory upload.
func Upload(name, content string) *core.Upload {
	return &core.Upload{Name: name, Size: int64(len(content)), Content: strings.NewReader(content)}
}
