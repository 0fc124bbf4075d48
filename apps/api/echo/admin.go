package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
)

type adminApi struct {
	svc      user.ServiceInterface
	validate *validator.Validate
}

func registerAdminAPI(g *echo.Group, svc user.ServiceInterface, validate *validator.Validate) {
	api := adminApi{
		svc:      svc,
		validate: validate,
	}

	g.Use(adminMiddleware())

	g.GET("/users", api.queryUsers)
	g.DELETE("/users/:id", api.destroyUser)

	tg := g.Group("/teachers/:id")
	tg.GET("/verification", api.verification)
	tg.POST("/approve", api.approve)
	tg.POST("/reject", api.reject)
	tg.POST("/suspend", api.suspend)
	tg.POST("/unsuspend", api.unsuspend)
}

// Handlers

// queryUsers supports ?search=, repeated ?role= & ?status=, and ?ordering=-created_at,full_name
func (api *adminApi) queryUsers(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *adminApi) destroyUser(ctx echo.Context) error {
	admin, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), admin, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) verification(ctx echo.Context) error {
	rec, err := api.svc.GetVerification(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting verification record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *adminApi) approve(ctx echo.Context) error {
	return api.transition(ctx, api.svc.ApproveTeacher)
}

func (api *adminApi) suspend(ctx echo.Context) error {
	return api.transition(ctx, api.svc.SuspendTeacher)
}

func (api *adminApi) unsuspend(ctx echo.Context) error {
	return api.transition(ctx, api.svc.UnsuspendTeacher)
}

func (api *adminApi) reject(ctx echo.Context) error {
	var data user.RejectTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectTeacher")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	admin, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	usr, err := api.svc.RejectTeacher(ctx.Request().Context(), admin, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "rejecting teacher")
	}
	return ctx.JSON(http.StatusOK, usr)
}

type transitionFunc func(ctx context.Context, admin user.Identity, teacherID string) (user.User, error)

func (api *adminApi) transition(ctx echo.Context, fn transitionFunc) error {
	admin, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	usr, err := fn(ctx.Request().Context(), admin, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "updating teacher status")
	}
	return ctx.JSON(http.StatusOK, usr)
}
