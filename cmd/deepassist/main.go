package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/deepassist-go/internal/api"
	"github.com/comigor/deepassist-go/internal/config"
	"github.com/comigor/deepassist-go/internal/history"
	"github.com/comigor/deepassist-go/internal/llm"
	"github.com/comigor/deepassist-go/internal/logger"
	"github.com/comigor/deepassist-go/internal/prompt"
	"github.com/comigor/deepassist-go/internal/relay"
	"github.com/comigor/deepassist-go/internal/ui"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	mcpMode := flag.Bool("mcp", false, "serve the chat tool over MCP stdio instead of HTTP")
	flag.Parse()

	// stdout carries the MCP protocol, so logs go to stderr in that mode
	var logOut io.Writer = os.Stdout
	if *mcpMode {
		logOut = os.Stderr
	}

	if err := godotenv.Load(); err != nil {
		logger.L.Debug("no .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		return 1
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Format, logOut)

	system, err := prompt.Resolve(cfg.Relay.SystemPrompt, cfg.Relay.PromptPreset)
	if err != nil {
		logger.L.Error("invalid system prompt", "error", err)
		return 1
	}

	// Initialize LLM client
	completer := llm.NewCompleter(llm.NewClient(cfg.LLM), cfg.LLM)
	if cfg.LLM.WaitTimeout > 0 {
		logger.L.Info("waiting for inference backend", "base_url", cfg.LLM.BaseURL, "model", cfg.LLM.Model, "timeout", cfg.LLM.WaitTimeout.String())
		ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.WaitTimeout)
		if err := completer.WaitReady(ctx, 2*time.Second); err != nil {
			logger.L.Warn("inference backend not ready; continuing", "error", err)
		}
		cancel()
	}

	var storeOpts []history.StoreOption
	if cfg.History.JournalPath != "" {
		journal := history.NewJournal(cfg.History.JournalPath)
		defer func() {
			if err := journal.Close(); err != nil {
				logger.L.Warn("journal close error", "error", err)
			}
		}()
		storeOpts = append(storeOpts, history.WithJournal(journal))
	}

	rl := relay.New(completer, prompt.Assembler{System: system, Window: cfg.Relay.HistoryWindow})

	if *mcpMode {
		logger.L.Info("serving MCP over stdio", "model", cfg.LLM.Model)
		if err := server.ServeStdio(relay.NewMCPServer(rl, history.NewStore(storeOpts...), version)); err != nil {
			logger.L.Error("mcp server error", "error", err)
			return 1
		}
		return 0
	}

	servers := []*http.Server{{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(api.NewHandler(rl, history.NewStore(storeOpts...)), cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}}

	if cfg.UI.Enabled {
		uiStore := history.NewStore(append(storeOpts, history.WithSeed(history.NewAI(cfg.UI.Greeting)))...)
		uih, err := ui.New(rl, uiStore, cfg.LLM.Model)
		if err != nil {
			logger.L.Error("ui init", "error", err)
			return 1
		}
		servers = append(servers, &http.Server{
			Addr:              cfg.UI.Addr(),
			Handler:           ui.NewRouter(uih),
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       120 * time.Second,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.L.Info("starting server", "address", srv.Addr, "model", cfg.LLM.Model, "version", version)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}(srv)
	}

	exitCode := 0
	select {
	case err := <-errChan:
		logger.L.Error("server error", "error", err)
		exitCode = 1
	case <-ctx.Done():
		logger.L.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.L.Error("graceful shutdown failed", "address", srv.Addr, "error", err)
		}
	}
	logger.L.Info("server stopped")
	return exitCode
}
