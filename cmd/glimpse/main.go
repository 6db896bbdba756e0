package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glimpsehq/glimpse/internal/agent"
	"github.com/glimpsehq/glimpse/internal/capture"
	"github.com/glimpsehq/glimpse/internal/config"
	"github.com/glimpsehq/glimpse/internal/db"
	"github.com/glimpsehq/glimpse/internal/llm"
	"github.com/glimpsehq/glimpse/internal/logger"
	"github.com/glimpsehq/glimpse/internal/mcp"
	"github.com/glimpsehq/glimpse/internal/server"
	"github.com/glimpsehq/glimpse/internal/store"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level)

	// Persistence is an enhancement, not a hard dependency: if the database
	// cannot be opened the app still answers questions, it just won't save
	// them.
	var st *store.Store
	database, err := db.Open(cfg.Database.Path, log)
	if err != nil {
		log.Error("history database unavailable; continuing without persistence", "error", err)
	} else {
		st = store.New(database.Handle(), log)
	}

	llmClient := llm.NewClient(cfg.LLM)
	captureSvc := capture.New(cfg.Capture, log)

	var history agent.History
	if st != nil {
		history = st
	}
	ag := agent.New(llmClient, cfg.LLM, history, log)

	srv := server.New(st, ag, captureSvc, log)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Routes(),
	}

	var historyMCP *mcp.HistoryServer
	if cfg.MCP.Enabled && st != nil {
		historyMCP = mcp.NewHistoryServer(st, version, log)
		go func() {
			if err := historyMCP.Start(cfg.MCP.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("MCP server failed", "error", err)
			}
		}()
	}

	go func() {
		log.Info("starting server", "address", httpServer.Addr, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown error", "error", err)
	}
	if historyMCP != nil {
		if err := historyMCP.Shutdown(shutdownCtx); err != nil {
			log.Warn("MCP server shutdown error", "error", err)
		}
	}
	if database != nil {
		if err := database.Close(); err != nil {
			log.Warn("database close error", "error", err)
		}
	}
}
