package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/config"
	healthHandler "github.com/Aytsuu/CIUDAD-APP-sub005/internal/handler/health"
	vaccinationHandler "github.com/Aytsuu/CIUDAD-APP-sub005/internal/handler/vaccination"
	vaccineHandler "github.com/Aytsuu/CIUDAD-APP-sub005/internal/handler/vaccine"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/middleware"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/repository/postgres"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/router"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/schedule"
	stockService "github.com/Aytsuu/CIUDAD-APP-sub005/internal/service/stock"
	vaccinationService "github.com/Aytsuu/CIUDAD-APP-sub005/internal/service/vaccination"
	vaccineService "github.com/Aytsuu/CIUDAD-APP-sub005/internal/service/vaccine"
	"github.com/Aytsuu/CIUDAD-APP-sub005/pkg/logger"
	"github.com/Aytsuu/CIUDAD-APP-sub005/pkg/metrics"
)

func main() {
	log := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)
	vaccineRepo := postgres.NewVaccineRepository(base)
	stockRepo := postgres.NewStockRepository(base)
	patientRecordRepo := postgres.NewPatientRecordRepository(base)
	vaccinationRepo := postgres.NewVaccinationRepository(base)
	vitalsRepo := postgres.NewVitalSignsRepository(base)
	followUpRepo := postgres.NewFollowUpRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	m := metrics.NewMetrics("vaccination")

	vaccineSvc := vaccineService.NewService(vaccineRepo, stockRepo)
	stockSvc := stockService.NewService(stockRepo, log.Zerolog(), m)
	planner := schedule.NewPlanner(log.Zerolog())
	saga := vaccinationService.NewSaga(
		patientRecordRepo,
		vaccinationRepo,
		vitalsRepo,
		followUpRepo,
		outboxRepo,
		stockRepo,
		vaccineSvc,
		stockSvc,
		planner,
		log.Zerolog(),
		m,
	)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	r := router.NewRouter(
		authMiddleware,
		healthHandler.NewHandler(db),
		vaccineHandler.NewHandler(vaccineSvc),
		vaccinationHandler.NewHandler(saga),
		log.Zerolog(),
		router.Config{
			RateLimit:  rate.Limit(100),
			RateBurst:  200,
			Timeout:    time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			CORSConfig: middleware.DefaultCORSConfig(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err, "server forced to shutdown")
	}

	log.Info("Server exited properly")
}
