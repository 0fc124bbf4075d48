package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/course"
)

type courseApi struct {
	svc           *course.Service
	validate      *validator.Validate
	maxUploadSize int64
}

func registerCourseAPI(
	g *echo.Group,
	upload echo.MiddlewareFunc,
	svc *course.Service,
	validate *validator.Validate,
	conf *core.Config,
) {
	api := courseApi{
		svc:           svc,
		validate:      validate,
		maxUploadSize: conf.Server.MaxUploadSize,
	}
	active, teacher, student := activeMiddleware(), teacherMiddleware(), studentMiddleware()

	cg := g.Group("/courses")
	cg.GET("", api.list, active)
	cg.POST("", api.create, teacher)
	cg.POST("/join", api.join, student)

	dg := cg.Group("/:id")
	dg.GET("", api.retrieve, active)
	dg.PUT("", api.update, teacher)
	dg.DELETE("", api.destroy, teacher)
	dg.GET("/students", api.students, teacher)
	dg.GET("/materials", api.materials, active)
	dg.POST("/materials", api.addMaterial, teacher, upload)

	g.DELETE("/materials/:id", api.destroyMaterial, teacher)
}

// Handlers

// list returns the courses a teacher manages (every course for admins) or the courses a student joined.
func (api *courseApi) list(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var crss []course.Summary
	if actor.IsStudent() {
		crss, err = api.svc.ListEnrolled(ctx.Request().Context(), actor)
	} else {
		crss, err = api.svc.ListManaged(ctx.Request().Context(), actor)
	}
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	if crss == nil {
		crss = []course.Summary{}
	}
	return ctx.JSON(http.StatusOK, crss)
}

func (api *courseApi) create(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) join(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data course.JoinCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinCourse")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.svc.Join(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "joining course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	crs, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	crs, err := api.svc.ManagedCourse(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}

	var data course.UpdateCourse
	if isJSON(ctx) {
		if err = ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to UpdateCourse")
		}
	} else {
		form, err := newFormData(ctx)
		if err != nil {
			return err
		}
		data.Name = form.str("name")
		data.Description = form.optStr("description")
	}
	if err = data.Validate(crs, api.validate); err != nil {
		return err
	}

	crs, err = api.svc.Update(ctx.Request().Context(), crs, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) students(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	students, err := api.svc.ListStudents(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing students")
	}
	if students == nil {
		students = []course.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *courseApi) materials(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	mats, err := api.svc.ListMaterials(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing materials")
	}
	if mats == nil {
		mats = []course.Material{}
	}
	return ctx.JSON(http.StatusOK, mats)
}

func (api *courseApi) addMaterial(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data course.NewMaterial
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	upload, closer, err := bindUpload(ctx, fileField, api.maxUploadSize)
	if err != nil {
		return err
	}
	defer closeUpload(ctx, closer)

	mat, err := api.svc.AddMaterial(ctx.Request().Context(), actor, ctx.Param("id"), data, upload)
	if err != nil {
		return errors.Wrap(err, "adding material")
	}
	return ctx.JSON(http.StatusCreated, mat)
}

func (api *courseApi) destroyMaterial(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.DeleteMaterial(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return ctx.NoContent(http.StatusNoContent)
}
