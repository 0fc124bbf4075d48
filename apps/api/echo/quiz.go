package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core/quiz"
)

type quizApi struct {
	svc      *quiz.Service
	validate *validator.Validate
}

// quizDetail is a quiz with its question list.
type quizDetail struct {
	quiz.Quiz
	Questions []quiz.Question `json:"questions"`
}

func registerQuizAPI(g *echo.Group, svc *quiz.Service, validate *validator.Validate) {
	api := quizApi{
		svc:      svc,
		validate: validate,
	}
	active, teacher, student := activeMiddleware(), teacherMiddleware(), studentMiddleware()

	g.GET("/courses/:id/quizzes", api.list, active)
	g.POST("/courses/:id/quizzes", api.create, teacher)

	qg := g.Group("/quizzes/:id")
	qg.GET("", api.retrieve, active)
	qg.PUT("", api.update, teacher)
	qg.DELETE("", api.destroy, teacher)
	qg.GET("/results", api.results, teacher)
	qg.POST("/attempts", api.enter, student)
	qg.GET("/attempts", api.history, student)

	tg := g.Group("/attempts/:id")
	tg.GET("", api.attempt, active)
	tg.PUT("/answers", api.saveAnswers, student)
	tg.POST("/submit", api.submit, student)
}

// Handlers

func (api *quizApi) list(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	qzs, err := api.svc.ListForCourse(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing quizzes")
	}
	if qzs == nil {
		qzs = []quiz.Quiz{}
	}
	return ctx.JSON(http.StatusOK, qzs)
}

func (api *quizApi) create(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data quiz.NewQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	qz, qs, err := api.svc.Create(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, quizDetail{Quiz: qz, Questions: qs})
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	qz, qs, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting quiz")
	}
	if qs == nil {
		qs = []quiz.Question{}
	}
	return ctx.JSON(http.StatusOK, quizDetail{Quiz: qz, Questions: qs})
}

func (api *quizApi) update(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data quiz.UpdateQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuiz")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	qz, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating quiz")
	}
	return ctx.JSON(http.StatusOK, qz)
}

func (api *quizApi) destroy(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *quizApi) results(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	atts, err := api.svc.Results(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing quiz results")
	}
	if atts == nil {
		atts = []quiz.Attempt{}
	}
	return ctx.JSON(http.StatusOK, atts)
}

// enter starts a new attempt or resumes the one in progress. An attempt found past its time
// limit is submitted on the spot and its result returned instead.
func (api *quizApi) enter(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sess, err := api.svc.Enter(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "entering quiz")
	}
	code := http.StatusOK
	if sess.IsNewAttempt {
		code = http.StatusCreated
	}
	return ctx.JSON(code, sess)
}

func (api *quizApi) history(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	atts, err := api.svc.History(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing attempts")
	}
	if atts == nil {
		atts = []quiz.Attempt{}
	}
	return ctx.JSON(http.StatusOK, atts)
}

func (api *quizApi) attempt(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.AttemptResult(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting attempt")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *quizApi) saveAnswers(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data quiz.SubmitAttempt
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAttempt")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	answers, err := api.svc.SaveAnswers(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "saving answers")
	}
	if answers == nil {
		answers = []quiz.Answer{}
	}
	return ctx.JSON(http.StatusOK, answers)
}

func (api *quizApi) submit(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data quiz.SubmitAttempt
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAttempt")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Submit(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	return ctx.JSON(http.StatusOK, res)
}
