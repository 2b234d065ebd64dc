package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/team"
	"github.com/acadamier/backend/core/user"
	emailsvc "github.com/acadamier/backend/services/email"
	logsvc "github.com/acadamier/backend/services/logger"
	mediasvc "github.com/acadamier/backend/services/media"
	tasksvc "github.com/acadamier/backend/services/tasks"
	videosvc "github.com/acadamier/backend/services/video"
	"github.com/acadamier/backend/storage/database"
	sqlxrepos "github.com/acadamier/backend/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	ctx := context.Background()

	zl, err := logsvc.NewZapLogger(conf, "admin")
	if err != nil {
		log.Fatalf("setting up zap: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(false)

	// set up DB
	if err = database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	sqlDB, err := database.Open(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	db := sqlxrepos.New(sqlDB)

	// admin commands run their tasks inline
	tasks := tasksvc.NewSyncQueue()
	media := mediasvc.NewLocalStorage(conf)
	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleService(conf, logger), conf)
	courseSvc := course.NewService(sqlxrepos.NewCourseRepository(db), tasks, media, videosvc.NewFFmpegTranscoder(conf, media), logger)
	enrollSvc := payment.NewEnrollmentService(sqlxrepos.NewPaymentRepository(db), courseSvc)

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	course.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:        sqlDB,
		usrRepo:   usrRepo,
		courseSvc: courseSvc,
		teamSvc:   team.NewService(sqlxrepos.NewTeamRepository(db), usrSvc, enrollSvc, logger),
		validate:  validate,
	}
	err = cli.run(os.Args)
	_ = sqlDB.Close()
	logger.Sync()
	if err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %+v\n", err)
		}
		os.Exit(1)
	}
}
