// File path: cmd/cattle/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/CLARIAH/cattle-druid/internal/api"
	"github.com/CLARIAH/cattle-druid/internal/common"
	"github.com/CLARIAH/cattle-druid/internal/config"
	"github.com/CLARIAH/cattle-druid/internal/cow"
	"github.com/CLARIAH/cattle-druid/internal/druid"
	"github.com/CLARIAH/cattle-druid/internal/notify"
	"github.com/CLARIAH/cattle-druid/internal/session"
	"github.com/CLARIAH/cattle-druid/internal/storage"
)

func main() {
	logger := common.Logger()

	if err := godotenv.Load(); err != nil {
		logger.Debug("cattle: .env file not loaded", "error", err)
	} else {
		logger.Info("cattle: environment loaded from .env")
	}

	addr := flag.String("addr", "", "listen address (overrides config)")
	configPath := flag.String("config", "", "path to a YAML config file")
	storageRoot := flag.String("storage", "", "workspace storage root (overrides config)")
	engine := flag.String("engine", "", "conversion engine command (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("cattle: config load failed", "error", err)
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	cfg = cfg.Merge(config.Config{
		Addr:          strings.TrimSpace(*addr),
		StorageRoot:   strings.TrimSpace(*storageRoot),
		EngineCommand: strings.TrimSpace(*engine),
	})

	logger.Info("cattle: startup initiated",
		"addr", cfg.Addr, "storage", cfg.StorageRoot, "engine", cfg.EngineCommand)

	store, err := storage.NewStore(cfg.StorageRoot)
	if err != nil {
		logger.Error("cattle: storage initialization failed", "error", err)
		fmt.Println("storage error:", err)
		os.Exit(1)
	}
	invoker := cow.New(cfg.EngineCommand, cfg.EngineTimeout)
	logger.Info("cattle: conversion engine ready", "version", invoker.Version(context.Background()))

	var poller *druid.Poller
	if strings.TrimSpace(cfg.DruidAPI) != "" {
		client := druid.NewClient(cfg.DruidAPI, cfg.DruidToken, cfg.DruidTimeout)
		mailer := notify.NewMailer(cfg.MailgunAPI, cfg.MailgunDomain, cfg.MailgunKey, cfg.MailSender, 0)
		if mailer == nil {
			logger.Info("cattle: mail notifications not configured")
		}
		poller = druid.NewPoller(client, store, invoker, mailer, cfg.CompanionWait)
		logger.Info("cattle: druid integration ready", "api", cfg.DruidAPI)
	} else {
		logger.Info("cattle: druid integration not configured")
	}

	server, err := api.NewServer(store, invoker, poller, session.NewManager(), cfg.SupportContact)
	if err != nil {
		logger.Error("cattle: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	logger.Info("cattle: server listening", "addr", cfg.Addr, "health", "/healthz")
	fmt.Printf("Serving on %s\n", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, server); err != nil {
		logger.Error("cattle: server stopped", "error", err)
		fmt.Println("server stopped:", err)
	}
}
