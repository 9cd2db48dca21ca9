package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/infrastructure/auth"
)

// CertificateHandler certificates listing, issuance and public verification
type CertificateHandler struct {
	certificateUseCase domain.CertificateUseCase
	jwtUtil            *auth.JWTUtil
}

func NewCertificateHandler(CertificateUseCase domain.CertificateUseCase, JWTUtil *auth.JWTUtil) *CertificateHandler {
	handler := &CertificateHandler{CertificateUseCase, JWTUtil}
	return handler
}

// HandleListCertificates GET /certificates/:userId, learners only see their own
func (ch *CertificateHandler) HandleListCertificates(c echo.Context) (err error) {
	claims := ch.jwtUtil.GetContextToken(c)
	userID := c.Param("userId")
	if userID != claims.UID && !claims.IsAdmin() {
		return c.JSON(http.StatusForbidden, NewRESTStandardError(http.StatusForbidden, "certificates of other users are not visible"))
	}

	certificates, err := ch.certificateUseCase.ListUserCertificates(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	if certificates == nil {
		certificates = []*domain.CertificateModel{}
	}
	return c.JSON(http.StatusOK, certificates)
}

// HandleVerifyCertificate GET /certificates/verify/:number?code=, no authentication
func (ch *CertificateHandler) HandleVerifyCertificate(c echo.Context) (err error) {
	verification, err := ch.certificateUseCase.VerifyCertificate(c.Request().Context(), c.Param("number"), c.QueryParam("code"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, verification)
}

// HandleIssueForFormation POST /certificates/formation/:formationId/issue
func (ch *CertificateHandler) HandleIssueForFormation(c echo.Context) (err error) {
	report, err := ch.certificateUseCase.IssueForFormation(c.Request().Context(), c.Param("formationId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}
