package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/assignment"
)

type assignmentApi struct {
	svc           *assignment.Service
	validate      *validator.Validate
	maxUploadSize int64
}

func registerAssignmentAPI(
	g *echo.Group,
	upload echo.MiddlewareFunc,
	svc *assignment.Service,
	validate *validator.Validate,
	conf *core.Config,
) {
	api := assignmentApi{
		svc:           svc,
		validate:      validate,
		maxUploadSize: conf.Server.MaxUploadSize,
	}
	active, teacher, student := activeMiddleware(), teacherMiddleware(), studentMiddleware()

	g.GET("/courses/:id/assignments", api.list, active)
	g.POST("/courses/:id/assignments", api.create, teacher, upload)

	ag := g.Group("/assignments/:id")
	ag.GET("", api.retrieve, active)
	ag.PUT("", api.update, teacher, upload)
	ag.DELETE("", api.destroy, teacher)
	ag.GET("/submissions", api.submissions, teacher)
	ag.GET("/submission", api.mySubmission, student)
	ag.POST("/submission", api.submit, student, upload)

	g.POST("/submissions/:id/grade", api.grade, teacher)
}

// Handlers

func (api *assignmentApi) list(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	asgs, err := api.svc.ListForCourse(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	if asgs == nil {
		asgs = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *assignmentApi) create(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data assignment.NewAssignment
	if isJSON(ctx) {
		if err = ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to NewAssignment")
		}
	} else {
		form, err := newFormData(ctx)
		if err != nil {
			return err
		}
		data.Title = form.str("title")
		data.Description = form.str("description")
		data.TotalPoints = form.num("total_points")
		if due := form.date("due_date"); due != nil {
			data.DueDate = *due
		}
		if err = form.err(); err != nil {
			return err
		}
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	upload, closer, err := bindUpload(ctx, fileField, api.maxUploadSize)
	if err != nil {
		return err
	}
	defer closeUpload(ctx, closer)

	asg, err := api.svc.Create(ctx.Request().Context(), actor, ctx.Param("id"), data, upload)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	asg, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data assignment.UpdateAssignment
	if isJSON(ctx) {
		if err = ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to UpdateAssignment")
		}
	} else {
		form, err := newFormData(ctx)
		if err != nil {
			return err
		}
		data.Title = form.str("title")
		data.Description = form.optStr("description")
		data.DueDate = form.date("due_date")
		data.TotalPoints = form.num("total_points")
		if err = form.err(); err != nil {
			return err
		}
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	upload, closer, err := bindUpload(ctx, fileField, api.maxUploadSize)
	if err != nil {
		return err
	}
	defer closeUpload(ctx, closer)

	asg, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data, upload)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assignmentApi) submissions(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	subs, err := api.svc.ListSubmissions(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) mySubmission(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sub, err := api.svc.MySubmission(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

// submit creates the student's submission or replaces it until it is graded.
func (api *assignmentApi) submit(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data assignment.NewSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	upload, closer, err := bindUpload(ctx, fileField, api.maxUploadSize)
	if err != nil {
		return err
	}
	defer closeUpload(ctx, closer)

	sub, err := api.svc.Submit(ctx.Request().Context(), actor, ctx.Param("id"), data, upload)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assignmentApi) grade(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data assignment.GradeSubmission
	if isJSON(ctx) {
		if err = ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to GradeSubmission")
		}
	} else {
		form, err := newFormData(ctx)
		if err != nil {
			return err
		}
		data.Grade = form.decimal("grade")
		data.Feedback = form.str("feedback")
		if err = form.err(); err != nil {
			return err
		}
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.Grade(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}
