package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/troopconnect/troopconnect/core/member"
)

type referenceApi struct {
	svc member.Service
}

func registerReferenceAPI(g *echo.Group, svc member.Service) {
	api := referenceApi{svc: svc}

	g.GET("/roles", api.queryRoles)
	g.GET("/sections", api.querySections)
	g.GET("/birth-years", api.queryBirthYears)

	sg := g.Group("/school-years")
	sg.GET("", api.querySchoolYears)
	sg.POST("", api.createSchoolYear)
	sg.GET("/current", api.currentSchoolYear)
}

type (
	NewSchoolYearRequest struct {
		Year int `json:"year"`
	}

	CurrentSchoolYearResponse struct {
		Current member.SchoolYear  `json:"current"`
		Next    *member.SchoolYear `json:"next"`
	}
)

func (api *referenceApi) queryRoles(ctx echo.Context) error {
	roles, err := api.svc.Roles(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying roles")
	}
	return ctx.JSON(http.StatusOK, roles)
}

func (api *referenceApi) querySections(ctx echo.Context) error {
	sections, err := api.svc.Sections(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying sections")
	}
	return ctx.JSON(http.StatusOK, sections)
}

func (api *referenceApi) queryBirthYears(ctx echo.Context) error {
	choices, err := api.svc.BirthYearChoices(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing birth year choices")
	}
	return ctx.JSON(http.StatusOK, choices)
}

func (api *referenceApi) querySchoolYears(ctx echo.Context) error {
	years, err := api.svc.SchoolYears(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying school years")
	}
	if years == nil {
		years = []member.SchoolYear{}
	}
	return ctx.JSON(http.StatusOK, years)
}

func (api *referenceApi) createSchoolYear(ctx echo.Context) error {
	var data NewSchoolYearRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchoolYearRequest")
	}
	sy, err := api.svc.CreateSchoolYear(ctx.Request().Context(), data.Year)
	if err != nil {
		return errors.Wrap(err, "creating school year")
	}
	return ctx.JSON(http.StatusCreated, sy)
}

func (api *referenceApi) currentSchoolYear(ctx echo.Context) error {
	current, next, err := api.svc.CurrentSchoolYear(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting current school year")
	}
	return ctx.JSON(http.StatusOK, CurrentSchoolYearResponse{Current: current, Next: next})
}
