package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/infrastructure/auth"
)

// QuizHandler quiz attempts
type QuizHandler struct {
	quizUseCase domain.QuizUseCase
	jwtUtil     *auth.JWTUtil
}

func NewQuizHandler(QuizUseCase domain.QuizUseCase, JWTUtil *auth.JWTUtil) *QuizHandler {
	handler := &QuizHandler{QuizUseCase, JWTUtil}
	return handler
}

// HandleStartAttempt POST /quiz/:quizId/attempts, 201 for a new attempt, 200 when resumed
func (qh *QuizHandler) HandleStartAttempt(c echo.Context) (err error) {
	claims := qh.jwtUtil.GetContextToken(c)

	view, err := qh.quizUseCase.StartAttempt(c.Request().Context(), claims.UID, c.Param("quizId"))
	if err != nil {
		return err
	}
	if view.Resumed {
		return c.JSON(http.StatusOK, view)
	}
	return c.JSON(http.StatusCreated, view)
}

// HandleSubmitAttempt POST /quiz/attempts/:attemptId/submit
func (qh *QuizHandler) HandleSubmitAttempt(c echo.Context) (err error) {
	claims := qh.jwtUtil.GetContextToken(c)

	input := new(domain.SubmitAttemptInput)
	if err = c.Bind(input); err != nil {
		return c.JSON(http.StatusBadRequest, bindError(err))
	}

	result, err := qh.quizUseCase.SubmitAttempt(c.Request().Context(), claims.UID, c.Param("attemptId"), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// HandleGetAttempt GET /quiz/attempts/:attemptId
func (qh *QuizHandler) HandleGetAttempt(c echo.Context) (err error) {
	claims := qh.jwtUtil.GetContextToken(c)

	attempt, err := qh.quizUseCase.GetAttempt(c.Request().Context(), claims.UID, c.Param("attemptId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, attempt)
}
