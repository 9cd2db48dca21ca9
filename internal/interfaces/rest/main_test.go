package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/progress-engine/internal/certificate"
	"github.com/pot-code/progress-engine/internal/dashboard"
	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/formation"
	infra "github.com/pot-code/progress-engine/internal/infrastructure"
	"github.com/pot-code/progress-engine/internal/infrastructure/auth"
	inmemdb "github.com/pot-code/progress-engine/internal/infrastructure/inmem"
	"github.com/pot-code/progress-engine/internal/infrastructure/validate"
	"github.com/pot-code/progress-engine/internal/lesson"
	"github.com/pot-code/progress-engine/internal/notification"
	"github.com/pot-code/progress-engine/internal/quiz"
	"github.com/pot-code/progress-engine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const jwtSecret = "test-jwt-secret"

type testServer struct {
	app     *echo.Echo
	kv      *testutil.MemoryKV
	db      *inmemdb.DB
	jwtUtil *auth.JWTUtil
}

func newTestServer(t *testing.T) *testServer {
	option := new(infra.AppConfig)
	option.AppID = "progress-engine"
	option.Env = infra.EnvProduction
	option.RequestTimeout = 5 * time.Second
	option.SessionTimeout = 30 * time.Minute
	option.SessionRefresh = 5 * time.Minute
	option.Security.JWTMethod = "HS256"
	option.Security.JWTSecret = jwtSecret
	option.Security.TokenName = "token"
	option.RateLimit.VerifyLimit = 3
	option.RateLimit.VerifyWindow = time.Hour

	db := inmemdb.NewDB()
	f1 := testutil.NewFormation("f1", 1)
	f2 := testutil.NewFormation("f2", 1)
	f2.QuizRequired = true
	db.PutFormation(f1)
	db.PutFormation(f2)
	db.PutQuiz(testutil.NewSingleChoiceQuiz("qz", "f2", 10, 70))
	db.PutAssignment(&domain.AssignmentModel{UserID: "u1", FormationID: "f1", AssignedAt: time.Now().Add(-time.Hour)})
	db.PutAssignment(&domain.AssignmentModel{UserID: "u1", FormationID: "f2", AssignedAt: time.Now().Add(-time.Hour)})

	logger := zaptest.NewLogger(t)
	kv := testutil.NewMemoryKV()
	ids := &testutil.SequenceGenerator{Prefix: "id"}
	hub := notification.NewHub(logger, notification.DefaultClientBuffer)
	notifier := notification.NewDispatcher(ids, notification.LogSink{}, hub)
	validator := validate.NewValidator()

	var (
		catalogRepo     = inmemdb.NewCatalogRepository(db)
		progressRepo    = inmemdb.NewLessonProgressRepository(db)
		quizRepo        = inmemdb.NewQuizRepository(db)
		certificateRepo = inmemdb.NewCertificateRepository(db)

		formationUseCase   = formation.NewFormationProgressUseCase(catalogRepo, progressRepo)
		certificateUseCase = certificate.NewCertificateUseCase(certificateRepo, catalogRepo, formationUseCase,
			quizRepo, notifier, ids, "certificate-secret", 3)
	)
	app := NewServer(option, &Dependencies{
		KV:                       kv,
		Probes:                   []Pinger{kv},
		LessonProgressUseCase:    lesson.NewLessonProgressUseCase(progressRepo, catalogRepo, formationUseCase, certificateUseCase, validator),
		FormationProgressUseCase: formationUseCase,
		QuizUseCase:              quiz.NewQuizUseCase(quizRepo, certificateUseCase, notifier, ids, validator),
		CertificateUseCase:       certificateUseCase,
		DashboardUseCase:         dashboard.NewDashboardUseCase(catalogRepo, formationUseCase, progressRepo, quizRepo, certificateRepo),
		NotificationStream:       hub,
		Logger:                   logger,
	})
	return &testServer{
		app:     app,
		kv:      kv,
		db:      db,
		jwtUtil: auth.NewJWTUtil("HS256", jwtSecret, "token", 30*time.Minute),
	}
}

func (ts *testServer) token(t *testing.T, uid, role string) string {
	token, err := ts.jwtUtil.GenerateTokenStr(uid, uid, role)
	require.NoError(t, err)
	return token
}

// do send the request as the holder of token, an empty token sends none
func (ts *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	rec := httptest.NewRecorder()
	ts.app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/v1/progress", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/v1/progress", "not-a-jwt", "").Code)

	other := auth.NewJWTUtil("HS256", "another-secret", "token", time.Minute)
	forged, err := other.GenerateTokenStr("u1", "u1", auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/v1/progress", forged, "").Code)

	// revoked tokens are kept in the kv store
	token := ts.token(t, "u1", auth.RoleLearner)
	require.NoError(t, ts.kv.SetEX(token, "1", time.Minute))
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/v1/progress", token, "").Code)
}

func TestProgressAndCertificateFlow(t *testing.T) {
	ts := newTestServer(t)
	learner := ts.token(t, "u1", auth.RoleLearner)

	rec := ts.do(http.MethodPut, "/api/v1/progress/f1-l1", learner, `{"percentage": 150}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_params")

	rec = ts.do(http.MethodPut, "/api/v1/progress/f1-l1", learner, `{"percentage": "lots"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPut, "/api/v1/progress/nope", learner, `{"percentage": 10}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPut, "/api/v1/progress/f1-l1?formation_id=f2", learner, `{"percentage": 10}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPut, "/api/v1/progress/f1-l1?formation_id=f1", learner, `{"current_position": 40, "elapsed_time": 120}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var partial struct {
		Progress            domain.LessonProgressModel    `json:"progress"`
		CompletedNow        bool                          `json:"completed_now"`
		FormationPercentage float64                       `json:"formation_percentage"`
		FormationComplete   bool                          `json:"formation_complete"`
		FormationProgress   domain.FormationProgressModel `json:"formation_progress"`
	}
	decode(t, rec, &partial)
	assert.Equal(t, 40.0, partial.Progress.Percentage)
	assert.False(t, partial.CompletedNow)
	assert.Equal(t, 40.0, partial.FormationPercentage)
	assert.False(t, partial.FormationComplete)
	assert.Equal(t, 40.0, partial.FormationProgress.AveragePercentage)

	rec = ts.do(http.MethodPut, "/api/v1/progress/f1-l1", learner, `{"completed": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var done struct {
		CompletedNow        bool                          `json:"completed_now"`
		FormationPercentage float64                       `json:"formation_percentage"`
		FormationComplete   bool                          `json:"formation_complete"`
		FormationProgress   domain.FormationProgressModel `json:"formation_progress"`
	}
	decode(t, rec, &done)
	assert.True(t, done.CompletedNow)
	assert.True(t, done.FormationComplete)
	assert.Equal(t, 100.0, done.FormationPercentage)
	assert.True(t, done.FormationProgress.Complete)
	assert.Equal(t, 1, ts.db.CertificateCount(), "formation completion issues the certificate")

	rec = ts.do(http.MethodGet, "/api/v1/progress", learner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []domain.LessonProgressModel
	decode(t, rec, &records)
	assert.Len(t, records, 1)

	rec = ts.do(http.MethodGet, "/api/v1/progress/formation/f1", learner, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/certificates/u1", learner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var certificates []domain.CertificateModel
	decode(t, rec, &certificates)
	require.Len(t, certificates, 1)
	c := certificates[0]
	assert.Equal(t, "f1", c.FormationID)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/v1/certificates/u1", ts.token(t, "u2", auth.RoleLearner), "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/v1/certificates/u1", ts.token(t, "boss", auth.RoleAdmin), "").Code)

	// public verification, rate limited per client
	rec = ts.do(http.MethodGet, "/api/v1/certificates/verify/"+c.Number+"?code="+c.VerificationCode, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var verification domain.CertificateVerification
	decode(t, rec, &verification)
	assert.True(t, verification.Valid)
	assert.True(t, verification.CodeValid)
	assert.NotContains(t, rec.Body.String(), "u1", "holder identity stays private")

	rec = ts.do(http.MethodGet, "/api/v1/certificates/verify/"+c.Number+"?code=0000000000", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &verification)
	assert.False(t, verification.Valid)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/v1/certificates/verify/CERT-20240101-AAAAAAAA", "", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.do(http.MethodGet, "/api/v1/certificates/verify/"+c.Number, "", "").Code)
}

func TestQuizFlow(t *testing.T) {
	ts := newTestServer(t)
	learner := ts.token(t, "u1", auth.RoleLearner)

	rec := ts.do(http.MethodPost, "/api/v1/quiz/qz/attempts", learner, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "correct", "answer key never leaves the service")
	var view struct {
		Attempt domain.QuizAttemptModel `json:"attempt"`
		Resumed bool                    `json:"resumed"`
	}
	decode(t, rec, &view)
	attemptID := view.Attempt.ID
	require.NotEmpty(t, attemptID)

	rec = ts.do(http.MethodPost, "/api/v1/quiz/qz/attempts", learner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.True(t, view.Resumed)
	assert.Equal(t, attemptID, view.Attempt.ID)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/api/v1/quiz/missing/attempts", learner, "").Code)

	submit := "/api/v1/quiz/attempts/" + attemptID + "/submit"
	other := ts.token(t, "u2", auth.RoleLearner)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, submit, other, `{"answers": {}}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, submit, learner, `{"answers": {"qz-q1": 3}}`).Code)

	rec = ts.do(http.MethodPost, submit, learner, `{"answers": {"qz-q1": "qz-a1"}, "elapsed_time": 42}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result domain.ScoreResult
	decode(t, rec, &result)
	assert.Equal(t, 100, result.Score)
	assert.True(t, result.Passed)
	assert.Zero(t, ts.db.CertificateCount(), "lessons of f2 are not completed yet")

	assert.Equal(t, http.StatusConflict, ts.do(http.MethodPost, submit, learner, `{"answers": {"qz-q1": "qz-a1"}}`).Code)

	rec = ts.do(http.MethodGet, "/api/v1/quiz/attempts/"+attemptID, learner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var attempt domain.QuizAttemptModel
	decode(t, rec, &attempt)
	assert.True(t, attempt.Closed())
	assert.Equal(t, int64(42), attempt.ElapsedTime)

	// finishing the lessons after passing the required quiz issues the certificate
	rec = ts.do(http.MethodPut, "/api/v1/progress/f2-l1", learner, `{"percentage": 100}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.db.CertificateCount())
}

func TestDashboardEndpoints(t *testing.T) {
	ts := newTestServer(t)
	learner := ts.token(t, "u1", auth.RoleLearner)
	admin := ts.token(t, "boss", auth.RoleAdmin)

	rec := ts.do(http.MethodPut, "/api/v1/progress/f1-l1", learner, `{"percentage": 100, "elapsed_time": 3900}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/dashboard", learner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var d domain.DashboardModel
	decode(t, rec, &d)
	assert.Equal(t, 2, d.TotalFormations)
	assert.Equal(t, 1, d.CompletedFormations)
	assert.Equal(t, 1, d.PendingFormations)
	assert.Equal(t, "1h 05m", d.TimeSpentDisplay)
	assert.Equal(t, 1, d.Certificates)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/v1/dashboard?passing_only=true", learner, "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/v1/dashboard?passing_only=maybe", learner, "").Code)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/v1/dashboard/formation/f1", learner, "").Code)
	rec = ts.do(http.MethodGet, "/api/v1/dashboard/formation/f1", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats domain.FormationStatsModel
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.Assigned)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/v1/dashboard/formation/missing", admin, "").Code)
}

func TestIssueForFormationEndpoint(t *testing.T) {
	ts := newTestServer(t)
	learner := ts.token(t, "u1", auth.RoleLearner)
	admin := ts.token(t, "boss", auth.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/api/v1/certificates/formation/f1/issue", learner, "").Code)

	rec := ts.do(http.MethodPost, "/api/v1/certificates/formation/f1/issue", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report domain.BulkIssueReport
	decode(t, rec, &report)
	assert.Empty(t, report.Issued)
	assert.Equal(t, []string{"u1"}, report.Ineligible)
}

func TestLivenessProbe(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/healthz", "", "").Code)
	ts.kv.Down = true
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodGet, "/healthz", "", "").Code)
}
