package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/troopconnect/troopconnect/core/member"
)

var errPersonNotFoundInCtx = errors.New("person object not found in echo.Context")

type memberApi struct {
	svc member.Service
}

func registerMemberAPI(g *echo.Group, svc member.Service) {
	api := memberApi{svc: svc}

	mg := g.Group("/members")
	mg.GET("", api.query)
	mg.POST("", api.create)

	// detail endpoints
	dg := mg.Group("/:id", personMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.GET("/section", api.resolveSection)
	dg.POST("/role-section/preview", api.previewEdit)
	dg.PUT("/role-section", api.applyEdit)
	dg.GET("/parents", api.queryParents)
	dg.GET("/children", api.queryChildren)
	dg.POST("/children", api.registerChild)
	dg.PUT("/children/:childID", api.linkChild)
	dg.DELETE("/children/:childID", api.detachChild)
}

type (
	SectionResponse struct {
		Label      string             `json:"label"`
		Tag        string             `json:"tag"`
		Status     string             `json:"status"`
		SchoolYear *member.SchoolYear `json:"school_year"`
		Section    *member.Section    `json:"section"`
	}

	LinkChildRequest struct {
		PrimaryContact bool `json:"primary_contact"`
	}
)

func newSectionResponse(res member.Resolution) SectionResponse {
	return SectionResponse{
		Label:      res.Label(),
		Tag:        res.Tag(),
		Status:     res.Status,
		SchoolYear: res.Year,
		Section:    res.Section,
	}
}

func ctxPerson(ctx echo.Context) (member.Person, error) {
	p, ok := ctx.Get("object").(member.Person)
	if !ok {
		return member.Person{}, errors.Wrap(errPersonNotFoundInCtx, "retrieving object from context")
	}
	return p, nil
}

// Handlers

func (api *memberApi) query(ctx echo.Context) error {
	filter := new(member.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []member.Person{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	persons, err := api.svc.QueryPersons(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying persons")
	}
	if persons == nil {
		persons = []member.Person{}
	}
	return ctx.JSON(http.StatusOK, persons)
}

func (api *memberApi) create(ctx echo.Context) error {
	var data member.NewPerson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPerson")
	}
	p, err := api.svc.CreatePerson(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating person")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *memberApi) retrieve(ctx echo.Context) error {
	p, err := ctxPerson(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *memberApi) update(ctx echo.Context) error {
	p, err := ctxPerson(ctx)
	if err != nil {
		return err
	}
	var data member.UpdatePerson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePerson")
	}
	if p, err = api.svc.UpdatePerson(ctx.Request().Context(), p.ID, data); err != nil {
		return errors.Wrap(err, "updating person")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *memberApi) resolveSection(ctx echo.Context) error {
	p, err := ctxPerson(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.ResolveSection(ctx.Request().Context(), p.ID)
	if err != nil {
		return errors.Wrap(err, "resolving section")
	}
	return ctx.JSON(http.StatusOK, newSectionResponse(res))
}

func (api *memberApi) previewEdit(ctx echo.Context) error {
	p, err := ctxPerson(ctx)
	if err != nil {
		return err
	}
	var data member.RoleSectionEdit
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RoleSectionEdit")
	}
	cs, err := api.svc.PreviewEdit(ctx.Request().Context(), p.ID, data)
	if err != nil {
		return errors.Wrap(err, "previewing role/section edit")
	}
	return ctx.JSON(http.StatusOK, cs)
}

func (api *memberApi) applyEdit(ctx echo.Context) error {
	p, err := ctxPerson(ctx)
	if err != nil {
		return err
	}
	var data member.RoleSectionEdit
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RoleSectionEdit")
	}
	cs, err := api.svc.ApplyEdit(ctx.Request().Context(), p.ID, data)
	if err != nil {
		return errors.Wrap(err, "applying role/section edit")
	}
	return ctx.JSON(http.StatusOK, cs)
}

func (api *memberApi) queryParents(ctx echo.Context) error {
	p, err := ctxPerson(ctx)
	if err != nil {
		return err
	}
	parents, err := api.svc.Parents(ctx.Request().Context(), p.ID)
	if err != nil {
		return errors.Wrap(err, "querying parents")
	}
	return ctx.JSON(http.StatusOK, parents)
}

func (api *memberApi) queryChildren(ctx echo.Context) error {
	p, err := ctxPerson(ctx)
	if err != nil {
		return err
	}
	children, err := api.svc.Children(ctx.Request().Context(), p.ID)
	if err != nil {
		return errors.Wrap(err, "querying children")
	}
	return ctx.JSON(http.StatusOK, children)
}

func (api *memberApi) registerChild(ctx echo.Context) error {
	p, err := ctxPerson(ctx)
	if err != nil {
		return err
	}
	var data member.NewPerson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPerson")
	}
	child, err := api.svc.RegisterChild(ctx.Request().Context(), p.ID, data)
	if err != nil {
		return errors.Wrap(err, "registering child")
	}
	return ctx.JSON(http.StatusCreated, child)
}

func (api *memberApi) linkChild(ctx echo.Context) error {
	p, err := ctxPerson(ctx)
	if err != nil {
		return err
	}
	var data LinkChildRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LinkChildRequest")
	}
	if err = api.svc.LinkParent(ctx.Request().Context(), p.ID, ctx.Param("childID"), data.PrimaryContact); err != nil {
		return errors.Wrap(err, "linking child")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *memberApi) detachChild(ctx echo.Context) error {
	p, err := ctxPerson(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DetachChild(ctx.Request().Context(), p.ID, ctx.Param("childID")); err != nil {
		return errors.Wrap(err, "detaching child")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// personMiddleware loads the person of the `:id` path param into the "object" context key.
func personMiddleware(svc member.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := svc.GetPerson(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Is(err, member.ErrNotFound) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding person by ID")
			}
			ctx.Set("object", p)
			return next(ctx)
		}
	}
}
