// Package container wires the app services from the configuration. Both the API server and the
// admin CLI are built on it.
package container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/assignment"
	"github.com/ElabeidiTech/LearnHub-sub000/core/course"
	"github.com/ElabeidiTech/LearnHub-sub000/core/quiz"
	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
	emailsvc "github.com/ElabeidiTech/LearnHub-sub000/services/email"
	logsvc "github.com/ElabeidiTech/LearnHub-sub000/services/logger"
	"github.com/ElabeidiTech/LearnHub-sub000/storage/database"
	dummydb "github.com/ElabeidiTech/LearnHub-sub000/storage/database/dummy"
	sqlxrepos "github.com/ElabeidiTech/LearnHub-sub000/storage/database/sqlx"
	"github.com/ElabeidiTech/LearnHub-sub000/storage/files"
)

type Container struct {
	Conf       *core.Config
	Logger     core.Logger
	DBLogger   core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	// DB is nil on the memory engine.
	DB    *sqlx.DB
	Files core.FileStorage
	Mail  core.EmailService

	// UserRepo lets the admin CLI manage accounts outside the registration rules.
	UserRepo user.Repository

	Users       *user.Service
	Courses     *course.Service
	Assignments *assignment.Service
	Quizzes     *quiz.Service
}

type repositories struct {
	tx          core.Transactor
	users       user.Repository
	courses     course.Repository
	assignments assignment.Repository
	quizzes     quiz.Repository
}

// NewLogger returns a rollbar backed logger writing to stdout with prefix. Rollbar reporting is off in debug mode.
func NewLogger(conf *core.Config, prefix string) core.Logger {
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, prefix+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	return logger
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidate(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	return validate
}

// newEmailService sends through sendgrid once an api key is configured; mails are printed otherwise.
func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// OpenDB creates the postgres database when missing, connects and runs the pending migrations.
func OpenDB(conf *core.Config, migrate bool) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func newRepositories(conf *core.Config, db *sqlx.DB) (repositories, error) {
	switch conf.Database.Engine {
	case core.DBEnginePostgres:
		return repositories{
			tx:          sqlxrepos.NewTransactor(db),
			users:       sqlxrepos.NewUserRepository(db),
			courses:     sqlxrepos.NewCourseRepository(db),
			assignments: sqlxrepos.NewAssignmentRepository(db),
			quizzes:     sqlxrepos.NewQuizRepository(db),
		}, nil
	case core.DBEngineMemory:
		mem, err := dummydb.Open()
		if err != nil {
			return repositories{}, errors.Wrap(err, "opening memory database")
		}
		return repositories{
			tx:          dummydb.NewTransactor(mem),
			users:       dummydb.NewUserRepository(mem),
			courses:     dummydb.NewCourseRepository(mem),
			assignments: dummydb.NewAssignmentRepository(mem),
			quizzes:     dummydb.NewQuizRepository(mem),
		}, nil
	}
	return repositories{}, errors.Errorf("unknown database engine %q", conf.Database.Engine)
}

// New builds every service. The postgres database is migrated unless migrate is false.
func New(ctx context.Context, conf *core.Config, prefix string, migrate bool) (*Container, error) {
	c := &Container{
		Conf:       conf,
		Logger:     NewLogger(conf, prefix),
		DBLogger:   NewLogger(conf, "DB"),
		Translator: NewTranslator(),
	}
	c.Validate = newValidate(c.Translator)

	core.ParseEmailTemplates(conf, c.Logger)
	user.LoadCommonPasswords(conf, c.Logger)

	if conf.Database.Engine == core.DBEnginePostgres {
		db, err := OpenDB(conf, migrate)
		if err != nil {
			return nil, errors.Wrap(err, "setting up database")
		}
		c.DB = db
	}
	repos, err := newRepositories(conf, c.DB)
	if err != nil {
		c.Close()
		return nil, err
	}

	if c.Files, err = files.New(ctx, conf); err != nil {
		c.Close()
		return nil, errors.Wrap(err, "setting up file storage")
	}
	c.Mail = newEmailService(conf, c.Logger)
	c.UserRepo = repos.users

	c.Users = user.NewService(repos.tx, repos.users, c.Mail, c.Files, conf, c.Logger)
	c.Courses = course.NewService(repos.tx, repos.courses, c.Files, c.Logger)
	c.Assignments = assignment.NewService(repos.assignments, c.Courses, c.Files, c.Logger)
	c.Quizzes = quiz.NewService(repos.tx, repos.quizzes, c.Courses, conf, c.Logger)
	return c, nil
}

// Close releases the database connection.
func (c *Container) Close() {
	if c.DB == nil {
		return
	}
	if err := c.DB.Close(); err != nil {
		c.DBLogger.Error(fmt.Sprintf("closing database: %v", err), err)
	}
	c.DB = nil
}
