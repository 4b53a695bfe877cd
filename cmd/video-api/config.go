// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/classloop/community-video-service/internal/logging"
)

// flags are the command line flags for the video service.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// environment are the environment variables for the video service.
type environment struct {
	Port string

	DatabaseURL   string
	MigrationsDir string
	RunMigrations bool

	DailyAPIKey string
	DailyAPIURL string

	StripeSecretKey            string
	StripeWebhookSecret        string
	StripeConnectWebhookSecret string

	NatsURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SMTP smtpConfig

	CleanupInterval time.Duration
}

// smtpConfig holds outbound email configuration.
type smtpConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// parseFlags parses command line flags for the video service
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "listen port")
	var bind = flag.String("bind", "*", "interface to bind on")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	// Based on the debug flag, set the log level environment variable used by [logging.InitStructuredLog]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}
}

// parseEnv parses environment variables for the video service
func parseEnv() environment {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}

	redisDB := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil {
			slog.With(logging.ErrKey, err, "value", raw).Error("invalid REDIS_DB, using 0")
		} else {
			redisDB = db
		}
	}

	smtpPort := 587
	if raw := os.Getenv("SMTP_PORT"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			slog.With(logging.ErrKey, err, "value", raw).Error("invalid SMTP_PORT, using 587")
		} else {
			smtpPort = p
		}
	}

	cleanupInterval := 15 * time.Minute
	if raw := os.Getenv("CLEANUP_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			slog.With(logging.ErrKey, err, "value", raw).Error("invalid CLEANUP_INTERVAL, using default")
		} else {
			cleanupInterval = d
		}
	}

	return environment{
		Port:                       port,
		DatabaseURL:                os.Getenv("DATABASE_URL"),
		MigrationsDir:              migrationsDir,
		RunMigrations:              os.Getenv("RUN_MIGRATIONS") == "true",
		DailyAPIKey:                os.Getenv("DAILY_API_KEY"),
		DailyAPIURL:                os.Getenv("DAILY_API_URL"),
		StripeSecretKey:            os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:        os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeConnectWebhookSecret: os.Getenv("STRIPE_CONNECT_WEBHOOK_SECRET"),
		NatsURL:                    os.Getenv("NATS_URL"),
		RedisAddr:                  os.Getenv("REDIS_ADDR"),
		RedisPassword:              os.Getenv("REDIS_PASSWORD"),
		RedisDB:                    redisDB,
		SMTP: smtpConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     smtpPort,
			From:     os.Getenv("SMTP_FROM"),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		CleanupInterval: cleanupInterval,
	}
}
