package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/infrastructure/auth"
	"github.com/pot-code/progress-engine/internal/infrastructure/validate"
)

// DashboardHandler statistics
type DashboardHandler struct {
	dashboardUseCase domain.DashboardUseCase
	jwtUtil          *auth.JWTUtil
}

func NewDashboardHandler(DashboardUseCase domain.DashboardUseCase, JWTUtil *auth.JWTUtil) *DashboardHandler {
	handler := &DashboardHandler{DashboardUseCase, JWTUtil}
	return handler
}

// HandleGetDashboard GET /dashboard?passing_only=true
func (dh *DashboardHandler) HandleGetDashboard(c echo.Context) (err error) {
	claims := dh.jwtUtil.GetContextToken(c)

	passingOnly := false
	if raw := c.QueryParam("passing_only"); raw != "" {
		if passingOnly, err = strconv.ParseBool(raw); err != nil {
			return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", []*validate.FieldError{
				validate.NewFieldError("passing_only", "passing_only must be a boolean"),
			}))
		}
	}

	dashboard, err := dh.dashboardUseCase.GetUserDashboard(c.Request().Context(), claims.UID, passingOnly)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dashboard)
}

// HandleGetFormationStats GET /dashboard/formation/:formationId
func (dh *DashboardHandler) HandleGetFormationStats(c echo.Context) (err error) {
	stats, err := dh.dashboardUseCase.GetFormationStats(c.Request().Context(), c.Param("formationId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
