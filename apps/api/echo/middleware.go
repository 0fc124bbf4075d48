package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
)

// identityMiddleware loads the user the token was issued to. Tokens of deleted users are refused,
// and so are those of rejected or suspended accounts, even when issued before the status change.
func identityMiddleware(svc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errUnauthorized
				}
				return errors.Wrap(err, "finding user by ID")
			}
			switch usr.Status {
			case user.StatusRejected:
				return errAccountRejected
			case user.StatusSuspended:
				return errAccountSuspended
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

// roleMiddleware only lets through users holding one of roles; pending teachers are kept out.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			for _, role := range roles {
				if usr.Role != role {
					continue
				}
				if usr.IsTeacher() && !usr.IsApproved() {
					return errPendingApproval
				}
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin)
}

// teacherMiddleware guards the teacher portal; admins may act on any course.
func teacherMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleTeacher, user.RoleAdmin)
}

func studentMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleStudent)
}

// activeMiddleware lets in every role once the account is approved.
func activeMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.AllRoles...)
}
