package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/assignment"
	"github.com/ElabeidiTech/LearnHub-sub000/core/course"
)

type fileApi struct {
	courseSvc     *course.Service
	assignmentSvc *assignment.Service
}

func registerFileAPI(g *echo.Group, courseSvc *course.Service, assignmentSvc *assignment.Service) {
	api := fileApi{
		courseSvc:     courseSvc,
		assignmentSvc: assignmentSvc,
	}
	g.GET("/files/:kind/:id", api.download, activeMiddleware())
}

// download streams a material, an assignment attachment or a submission file once the
// services have checked the caller may see it.
func (api *fileApi) download(ctx echo.Context) error {
	actor, err := getIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reqCtx, id := ctx.Request().Context(), ctx.Param("id")

	switch ctx.Param("kind") {
	case core.FileKindMaterial:
		mat, rc, err := api.courseSvc.OpenMaterial(reqCtx, actor, id)
		if err != nil {
			return errors.Wrap(err, "opening material")
		}
		return sendFile(ctx, mat.FileName, rc)
	case core.FileKindAssignment:
		asg, rc, err := api.assignmentSvc.OpenAttachment(reqCtx, actor, id)
		if err != nil {
			return errors.Wrap(err, "opening assignment attachment")
		}
		return sendFile(ctx, asg.FileName, rc)
	case core.FileKindSubmission:
		sub, rc, err := api.assignmentSvc.OpenSubmission(reqCtx, actor, id)
		if err != nil {
			return errors.Wrap(err, "opening submission")
		}
		return sendFile(ctx, sub.FileName, rc)
	}
	return errUnsupportedFileKind
}
