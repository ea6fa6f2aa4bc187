// Package main is the entry point of the application
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tecu23/chess-relay/internal/auth"
	"github.com/tecu23/chess-relay/pkg/archive"
	"github.com/tecu23/chess-relay/pkg/config"
	"github.com/tecu23/chess-relay/pkg/events"
	"github.com/tecu23/chess-relay/pkg/game"
	"github.com/tecu23/chess-relay/pkg/repository"
	"github.com/tecu23/chess-relay/pkg/server"
)

// App encapsulates global dependencies
type application struct {
	Auth       *auth.APIKeyAuth
	Logger     *zap.Logger
	Config     *config.Config
	Publisher  *events.Publisher
	Registry   *game.Registry
	Hub        *server.Hub
	Repository repository.GameRepository
	Archiver   *archive.Archiver
	NATS       *events.NATSForwarder
	Server     *http.Server

	StartTime time.Time
}

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.String("port", "8080", "server port")
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// A missing .env is fine; the environment may already be set.
	envErr := godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading config:", err)
		os.Exit(1)
	}

	// Flags given on the command line win over everything else.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			cfg.Debug = *debug
		case "port":
			cfg.Port = *port
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	if envErr != nil {
		logger.Debug("no .env file loaded", zap.Error(envErr))
	}

	app, err := newApplication(cfg, logger)
	if err != nil {
		logger.Fatal("initialize application error", zap.Error(err))
	}

	go app.Hub.Run()

	err = app.serve()
	if err != nil {
		logger.Fatal("error serving", zap.Error(err))
	}
}

// newApplication wires every component from cfg
func newApplication(cfg *config.Config, logger *zap.Logger) (*application, error) {
	// Initialize event publisher
	publisher := events.NewPublisher()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize repository
	repo, err := repository.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	archiver := archive.New(repo, logger)
	archiver.Attach(publisher)

	var forwarder *events.NATSForwarder
	if cfg.NATS.URL != "" {
		forwarder, err = events.ConnectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		forwarder.Attach(publisher)
	}

	registry := game.NewRegistry(cfg.GameSettings(), clockwork.NewRealClock(), publisher, logger)
	hub := server.NewHub(registry, publisher, logger)

	return &application{
		Auth:       auth.NewAPIKeyAuth(cfg.APIKeys),
		Logger:     logger,
		Config:     cfg,
		Publisher:  publisher,
		Registry:   registry,
		Hub:        hub,
		Repository: repo,
		Archiver:   archiver,
		NATS:       forwarder,
		StartTime:  time.Now(),
	}, nil
}

func initLogger(debug bool) *zap.Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	return logger
}

// Shutdown cleans up resources
func (app *application) Shutdown() {
	// Stop accepting frames first, then end the rooms.
	if app.Hub != nil {
		app.Hub.Shutdown()
	}
	if app.Registry != nil {
		app.Registry.Shutdown()
	}

	// Let pending archive writes land before the store goes away.
	if app.Archiver != nil {
		app.Archiver.Wait()
	}
	if app.Repository != nil {
		if err := app.Repository.Close(); err != nil {
			app.Logger.Warn("closing store", zap.Error(err))
		}
	}
	if app.NATS != nil {
		if err := app.NATS.Close(); err != nil {
			app.Logger.Warn("draining nats", zap.Error(err))
		}
	}

	app.Logger.Info("All components shut down successfully")
}
