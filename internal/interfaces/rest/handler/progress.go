package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/infrastructure/auth"
)

// ProgressHandler lesson and formation progress
type ProgressHandler struct {
	lessonUseCase    domain.LessonProgressUseCase
	formationUseCase domain.FormationProgressUseCase
	jwtUtil          *auth.JWTUtil
}

func NewProgressHandler(
	LessonUseCase domain.LessonProgressUseCase,
	FormationUseCase domain.FormationProgressUseCase,
	JWTUtil *auth.JWTUtil,
) *ProgressHandler {
	handler := &ProgressHandler{LessonUseCase, FormationUseCase, JWTUtil}
	return handler
}

type recordProgressResponse struct {
	*domain.ProgressRecordResult
	FormationPercentage float64                        `json:"formation_percentage"`
	FormationComplete   bool                           `json:"formation_complete"`
	FormationProgress   *domain.FormationProgressModel `json:"formation_progress,omitempty"`
}

// HandleRecordProgress PUT /progress/:lessonId, formation_id query parameter is optional
func (ph *ProgressHandler) HandleRecordProgress(c echo.Context) (err error) {
	claims := ph.jwtUtil.GetContextToken(c)

	obs := new(domain.ProgressObservation)
	if err = c.Bind(obs); err != nil {
		return c.JSON(http.StatusBadRequest, bindError(err))
	}

	result, err := ph.lessonUseCase.RecordProgress(c.Request().Context(),
		claims.UID, c.Param("lessonId"), c.QueryParam("formation_id"), obs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &recordProgressResponse{
		ProgressRecordResult: result,
		FormationPercentage:  result.Formation.AveragePercentage,
		FormationComplete:    result.Formation.Complete,
		FormationProgress:    result.Formation,
	})
}

// HandleListProgress GET /progress
func (ph *ProgressHandler) HandleListProgress(c echo.Context) (err error) {
	claims := ph.jwtUtil.GetContextToken(c)

	progress, err := ph.lessonUseCase.GetUserLessonProgress(c.Request().Context(), claims.UID)
	if err != nil {
		return err
	}
	if progress == nil {
		progress = []*domain.LessonProgressModel{}
	}
	return c.JSON(http.StatusOK, progress)
}

// HandleGetFormationProgress GET /progress/formation/:formationId
func (ph *ProgressHandler) HandleGetFormationProgress(c echo.Context) (err error) {
	claims := ph.jwtUtil.GetContextToken(c)

	progress, err := ph.formationUseCase.GetFormationProgress(c.Request().Context(), claims.UID, c.Param("formationId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, progress)
}
