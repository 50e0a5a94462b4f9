package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/cmeonline/enrollments/apps/api/echo"
	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/account"
	"github.com/cmeonline/enrollments/core/catalog"
	"github.com/cmeonline/enrollments/core/enrollment"
	logsvc "github.com/cmeonline/enrollments/services/logger"
	metricsvc "github.com/cmeonline/enrollments/services/metrics"
	"github.com/cmeonline/enrollments/storage/database"
	inmemdb "github.com/cmeonline/enrollments/storage/database/inmem"
	sqlxrepos "github.com/cmeonline/enrollments/storage/database/sqlx"
)

type storage struct {
	tx         core.TxRunner
	catalog    catalog.Repository
	accounts   account.Repository
	enrollment enrollment.Repository
	registrar  enrollment.CourseRegistrar
	close      func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	store, err := setUpStorage(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = store.close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)

	// set up services
	catalogSvc := catalog.NewService(store.catalog)
	accountSvc := account.NewService(store.accounts)
	enrollmentSvc := enrollment.NewService(store.tx, store.enrollment, accountSvc, store.registrar, validate, logger)
	metrics := metricsvc.NewCollector()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("database").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			CatalogSvc:    catalogSvc,
			EnrollmentSvc: enrollmentSvc,
			Metrics:       metrics,
			Translator:    translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpStorage(conf *core.Config) (storage, error) {
	if conf.Database.Engine == database.EngineInmem {
		db := inmemdb.Open()
		return storage{
			tx:         db,
			catalog:    inmemdb.NewCatalogRepository(db),
			accounts:   inmemdb.NewAccountRepository(db),
			enrollment: inmemdb.NewEnrollmentRepository(db),
			registrar:  inmemdb.NewCourseRegistrar(db),
			close:      func() error { return nil },
		}, nil
	}

	if err := database.Bootstrap(conf); err != nil {
		return storage{}, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return storage{}, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return storage{}, err
	}
	return storage{
		tx:         core.NewTxRunner(db),
		catalog:    sqlxrepos.NewCatalogRepository(db),
		accounts:   sqlxrepos.NewAccountRepository(db),
		enrollment: sqlxrepos.NewEnrollmentRepository(db),
		registrar:  sqlxrepos.NewCourseRegistrar(db),
		close:      db.Close,
	}, nil
}
