package main

import (
	"context"
	"log"

	"github.com/pot-code/progress-engine/internal/catalog"
	"github.com/pot-code/progress-engine/internal/certificate"
	"github.com/pot-code/progress-engine/internal/dashboard"
	"github.com/pot-code/progress-engine/internal/formation"
	infra "github.com/pot-code/progress-engine/internal/infrastructure"
	"github.com/pot-code/progress-engine/internal/infrastructure/driver"
	"github.com/pot-code/progress-engine/internal/infrastructure/logging"
	"github.com/pot-code/progress-engine/internal/infrastructure/uuid"
	"github.com/pot-code/progress-engine/internal/infrastructure/validate"
	"github.com/pot-code/progress-engine/internal/interfaces/rest"
	"github.com/pot-code/progress-engine/internal/lesson"
	"github.com/pot-code/progress-engine/internal/notification"
	"github.com/pot-code/progress-engine/internal/quiz"
	"go.uber.org/zap"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	dbConn, err := driver.GetDBConnection(&driver.DBConfig{
		User:     option.Database.User,
		Password: option.Database.Password,
		MaxConn:  option.Database.MaxConn,
		Driver:   option.Database.Driver,
		Host:     option.Database.Host,
		Port:     option.Database.Port,
		Query:    option.Database.Query,
		Schema:   option.Database.Schema,
		Path:     option.Database.Path,
	})
	if err != nil {
		logger.Fatal("Failed to create DB connection", zap.Error(err))
	}
	defer dbConn.Close(context.Background())
	logger.Debug("Create DB connection instance", zap.String("db.driver", option.Database.Driver),
		zap.String("db.schema", option.Database.Schema),
		zap.String("db.host", option.Database.Host),
		zap.String("db.path", option.Database.Path),
	)
	if option.Database.Migrate {
		if err := driver.Migrate(logging.SetLoggerInContext(context.Background(), logger), dbConn); err != nil {
			logger.Fatal("Failed to migrate schema", zap.Error(err))
		}
	}

	kv := driver.NewRedisClient(option.KVStore.Host, option.KVStore.Port, option.KVStore.Password)
	defer kv.Close()

	var (
		UUIDGenerator = uuid.NewNanoIDGenerator(option.Security.IDLength)
		Validator     = validate.NewValidator()
		Hub           = notification.NewHub(logger, notification.DefaultClientBuffer)
		Notifier      = notification.NewDispatcher(uuid.RandomGenerator{}, notification.LogSink{}, Hub)

		CatalogRepo     = catalog.NewCatalogRepository(dbConn)
		ProgressRepo    = lesson.NewLessonProgressRepository(dbConn)
		QuizRepo        = quiz.NewQuizRepository(dbConn)
		CertificateRepo = certificate.NewCertificateRepository(dbConn)

		FormationUseCase   = formation.NewFormationProgressUseCase(CatalogRepo, ProgressRepo)
		CertificateUseCase = certificate.NewCertificateUseCase(
			CertificateRepo, CatalogRepo, FormationUseCase, QuizRepo, Notifier, UUIDGenerator,
			option.Certificate.Secret,
			option.Certificate.NumberRetries,
		)
		LessonUseCase    = lesson.NewLessonProgressUseCase(ProgressRepo, CatalogRepo, FormationUseCase, CertificateUseCase, Validator)
		QuizUseCase      = quiz.NewQuizUseCase(QuizRepo, CertificateUseCase, Notifier, UUIDGenerator, Validator)
		DashboardUseCase = dashboard.NewDashboardUseCase(CatalogRepo, FormationUseCase, ProgressRepo, QuizRepo, CertificateRepo)
	)

	err = rest.Serve(option, &rest.Dependencies{
		KV:                       kv,
		Probes:                   []rest.Pinger{dbConn, kv},
		LessonProgressUseCase:    LessonUseCase,
		FormationProgressUseCase: FormationUseCase,
		QuizUseCase:              QuizUseCase,
		CertificateUseCase:       CertificateUseCase,
		DashboardUseCase:         DashboardUseCase,
		NotificationStream:       Hub,
		Logger:                   logger,
	})
	if err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}
