package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/acadamier/backend/apps/api/echo"
	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/notification"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/progress"
	"github.com/acadamier/backend/core/quiz"
	"github.com/acadamier/backend/core/scorm"
	"github.com/acadamier/backend/core/team"
	"github.com/acadamier/backend/core/user"
	appfs "github.com/acadamier/backend/fs"
	emailsvc "github.com/acadamier/backend/services/email"
	logsvc "github.com/acadamier/backend/services/logger"
	mediasvc "github.com/acadamier/backend/services/media"
	oauthsvc "github.com/acadamier/backend/services/oauth"
	"github.com/acadamier/backend/services/paystack"
	tasksvc "github.com/acadamier/backend/services/tasks"
	"github.com/acadamier/backend/services/tracing"
	videosvc "github.com/acadamier/backend/services/video"
	"github.com/acadamier/backend/storage/database"
	inmemdb "github.com/acadamier/backend/storage/database/inmem"
	sqlxrepos "github.com/acadamier/backend/storage/database/sqlx"
)

type repositories struct {
	user         user.Repository
	course       course.Repository
	quiz         quiz.Repository
	payment      payment.Repository
	team         team.Repository
	progress     progress.Repository
	scorm        scorm.Repository
	notification notification.Repository
	close        func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	ctx := context.Background()

	// set up loggers
	zl, err := logsvc.NewZapLogger(conf, "api")
	if err != nil {
		log.Fatalf("setting up zap: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)
	defer logger.Sync()

	stopTracing, err := tracing.Init(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up tracing: %v", err), err)
	}
	defer func() {
		if err := stopTracing(context.Background()); err != nil {
			logger.Error(fmt.Sprintf("stopping tracing: %v", err), err)
		}
	}()

	// set up DB
	repos, err := setUpRepositories(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err := repos.close(); err != nil {
			logger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()

	// set up background tasks
	pool := tasksvc.NewPool(conf, logger)
	pool.Start()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	media := mediasvc.NewLocalStorage(conf)

	notifSvc := notification.NewService(repos.notification, pool, mailSvc, logger)
	usrSvc := user.NewService(repos.user, mailSvc, conf, notifSvc)
	courseSvc := course.NewService(repos.course, pool, media, videosvc.NewFFmpegTranscoder(conf, media), logger, notifSvc)
	quizSvc := quiz.NewService(repos.quiz)
	enrollSvc := payment.NewEnrollmentService(repos.payment, courseSvc, notifSvc)
	teamSvc := team.NewService(repos.team, usrSvc, enrollSvc, logger, notifSvc)
	paymentSvc := payment.NewService(repos.payment, paystack.NewClient(conf), enrollSvc, courseSvc, usrSvc, mailSvc, pool, conf, logger, teamSvc)
	progressSvc := progress.NewService(repos.progress, courseSvc, pool, notifSvc)
	scormSvc := scorm.NewService(repos.scorm, media, pool, mailSvc, usrSvc, appfs.FS, logger, progressSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	scorm.InitValidators(validate, translator)

	core.ParseEmailTemplates(appfs.FS, conf, logger)

	user.LoadCommonPasswords(appfs.FS, logger)

	enforcer, err := echoapi.NewEnforcer(appfs.FS)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up authorization: %v", err), err)
	}

	var oauth echoapi.OAuthProvider
	if conf.Google.ClientID != "" {
		oauth = oauthsvc.NewGoogleProvider(conf)
	}

	// periodic analytics snapshots
	schedCtx, stopScheduler := context.WithCancel(ctx)
	scheduler := tasksvc.NewScheduler(pool)
	scheduler.Every(conf.Tasks.AnalyticsInterval, teamSvc.SnapshotTask)
	scheduler.Start(schedCtx)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			Validate:        validate,
			Translator:      translator,
			Enforcer:        enforcer,
			OAuth:           oauth,
			UserSvc:         usrSvc,
			CourseSvc:       courseSvc,
			QuizSvc:         quizSvc,
			EnrollSvc:       enrollSvc,
			PaymentSvc:      paymentSvc,
			TeamSvc:         teamSvc,
			ProgressSvc:     progressSvc,
			ScormSvc:        scormSvc,
			NotificationSvc: notifSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
	}

	// give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	// asking listener to shutdown and shed load
	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

		if err = server.Close(); err != nil {
			logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
		}
	}

	stopScheduler()
	scheduler.Wait()
	if err = pool.Stop(shutdownCtx); err != nil {
		logger.Error(fmt.Sprintf("could not drain background tasks: %v", err), err)
	}
}

// setUpRepositories stores data in memory when the database engine is "memory", in Postgres otherwise.
func setUpRepositories(ctx context.Context, conf *core.Config) (*repositories, error) {
	if conf.Database.Engine == database.EngineMemory {
		db := inmemdb.Open()
		return &repositories{
			user:         inmemdb.NewUserRepository(db),
			course:       inmemdb.NewCourseRepository(db),
			quiz:         inmemdb.NewQuizRepository(db),
			payment:      inmemdb.NewPaymentRepository(db),
			team:         inmemdb.NewTeamRepository(db),
			progress:     inmemdb.NewProgressRepository(db),
			scorm:        inmemdb.NewScormRepository(db),
			notification: inmemdb.NewNotificationRepository(db),
			close:        func() error { return nil },
		}, nil
	}

	sqlDB, err := setUpDB(ctx, conf)
	if err != nil {
		return nil, err
	}
	db := sqlxrepos.New(sqlDB)
	return &repositories{
		user:         sqlxrepos.NewUserRepository(db),
		course:       sqlxrepos.NewCourseRepository(db),
		quiz:         sqlxrepos.NewQuizRepository(db),
		payment:      sqlxrepos.NewPaymentRepository(db),
		team:         sqlxrepos.NewTeamRepository(db),
		progress:     sqlxrepos.NewProgressRepository(db),
		scorm:        sqlxrepos.NewScormRepository(db),
		notification: sqlxrepos.NewNotificationRepository(db),
		close:        sqlDB.Close,
	}, nil
}

func setUpDB(ctx context.Context, conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
