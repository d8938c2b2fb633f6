package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/cradoe/skypay/internal/app"
	"github.com/cradoe/skypay/internal/version"
	"github.com/cradoe/skypay/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := run(logger)
	if err != nil {
		trace := string(debug.Stack())
		logger.Error(err.Error(), "trace", trace)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	showVersion := flag.Bool("version", false, "display version and exit")
	seed := flag.Bool("seed", false, "seed banks and the first reviewer, then exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("version: %s\n", version.Get())
		return nil
	}

	application, err := app.NewApplication(logger)
	if err != nil {
		return err
	}
	defer application.Close()

	if *seed {
		return application.Seed()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wk := worker.New(&worker.Worker{
		KafkaStream: application.Kafka,
		Mailer:      application.Mailer,
		Logger:      logger,
		Ctx:         ctx,
		BaseURL:     application.Config.BaseURL,
		ReviewEmail: application.Config.Review.Email,
	})

	scheduler, err := wk.StartSweeper(application.Orchestrator, application.Config.Sweep.Interval)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	// status notifications are consumed from kafka; without it applicants and
	// reviewers only see status changes through the API
	if application.Kafka != nil {
		go wk.StatusNotificationWorker()
	}

	return application.ServeHTTP()
}
