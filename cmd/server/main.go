package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/medication-adherence/internal/config"
	"github.com/iliyamo/medication-adherence/internal/database"
	"github.com/iliyamo/medication-adherence/internal/handler"
	"github.com/iliyamo/medication-adherence/internal/middleware"
	"github.com/iliyamo/medication-adherence/internal/queue"
	"github.com/iliyamo/medication-adherence/internal/repository"
	"github.com/iliyamo/medication-adherence/internal/router"
	"github.com/iliyamo/medication-adherence/internal/task"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Repositories.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	meds := repository.NewMedicationRepo(db)
	schedules := repository.NewScheduleRepo(db)
	reminders := repository.NewReminderRepo(db)
	adherence := repository.NewAdherenceRepo(db)
	streaks := repository.NewStreakRepo(db)

	sweeper := task.NewSweeper(schedules, reminders, adherence, streaks)

	// Redis backs the rate limiter and the response cache; both degrade
	// to pass-through middleware when unavailable or disabled.
	rdb := config.NewRedisClient()
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	respCache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	e := echo.New()
	e.Use(rateLimit)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterAPI(e, router.APIHandlers{
		Medications: handler.NewMedicationHandler(meds),
		Schedules:   handler.NewScheduleHandler(schedules, sweeper),
		Reminders:   handler.NewReminderHandler(reminders),
		Adherence:   handler.NewAdherenceHandler(adherence, reminders, streaks, meds),
		Sync:        handler.NewSyncHandler(meds, schedules, reminders, adherence),
		Tasks:       handler.NewTaskHandler(sweeper),
	}, cfg.JWTSecret, respCache)

	// Background sweep cycle: expiry, generation, delivery, escalation,
	// retry and retention on one ticker.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Start(ctx, time.Duration(cfg.SweepIntervalMin)*time.Minute)

	// Consume reminder.due events and append them to the notification log.
	go func() {
		if err := queue.StartReminderConsumer(); err != nil {
			log.Printf("reminder consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
