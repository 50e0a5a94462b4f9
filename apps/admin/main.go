package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/account"
	"github.com/cmeonline/enrollments/core/catalog"
	"github.com/cmeonline/enrollments/core/enrollment"
	emailsvc "github.com/cmeonline/enrollments/services/email"
	logsvc "github.com/cmeonline/enrollments/services/logger"
	"github.com/cmeonline/enrollments/storage/database"
	sqlxrepos "github.com/cmeonline/enrollments/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	errAndDie(database.Bootstrap(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)

	accountSvc := account.NewService(sqlxrepos.NewAccountRepository(db))
	rollbarLogger := logsvc.NewRollbarLogger(logger, conf)
	defer rollbarLogger.Close()

	mailer := emailsvc.NewConsoleService(conf, os.Stdout)
	if conf.Email.SendgridAPIKey != "" {
		mailer = emailsvc.NewSendgridService(conf, rollbarLogger)
	}

	// start CLI
	cli := commandLine{
		conf:       conf,
		db:         db,
		out:        os.Stdout,
		validate:   validate,
		translator: translator,
		catalogSvc: catalog.NewService(sqlxrepos.NewCatalogRepository(db)),
		accountSvc: accountSvc,
		enrollSvc: enrollment.NewService(
			core.NewTxRunner(db),
			sqlxrepos.NewEnrollmentRepository(db),
			accountSvc,
			sqlxrepos.NewCourseRegistrar(db),
			validate,
			rollbarLogger,
		),
		mailer: mailer,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		rollbarLogger.Close()
		db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
