package main

import (
	"flag"
	"log"
	"log/slog"
	"path/filepath"

	"matcore/impl/auth"
	"matcore/impl/core"
	"matcore/internal/config"
	"matcore/internal/database"
	"matcore/internal/http-server/api"
	"matcore/lib/logger"
	"matcore/lib/sl"
)

const logFileName = "matcore.log"

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	logg := logger.SetupLogger(conf.Env, filepath.Join(*logPath, logFileName))
	logg.Info("starting matcore", slog.String("config", *configPath), slog.String("env", conf.Env))

	db := database.NewMongoClient(conf)
	if db == nil {
		log.Fatal("mongo is disabled in config; a store is required")
	}

	if conf.Auth.TokenSecret == "" {
		log.Fatal("auth token secret is not configured")
	}
	verifier := auth.New(conf.Auth.TokenSecret)

	handler := core.New(db, verifier, logg)

	if err := api.New(conf, logg, handler); err != nil {
		logg.Error("api server stopped", sl.Err(err))
	}
}
