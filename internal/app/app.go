// Package app wires the configured components of one workspace.
package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"draughtsman/internal/config"
	"draughtsman/internal/content"
	"draughtsman/internal/db"
	"draughtsman/internal/engine"
	"draughtsman/internal/engine/auth"
	"draughtsman/internal/logging"
	"draughtsman/internal/metrics"
	"draughtsman/internal/migrate"
	"draughtsman/internal/notify"
	"draughtsman/internal/recommend"
	"draughtsman/internal/repo"
	"draughtsman/internal/server"
)

// ResolveConfig loads the workspace config (or the file at path when set)
// and overlays the environment and flags bound on v.
func ResolveConfig(workspace, path string, v *viper.Viper) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.FromFile(path)
	} else {
		cfg, err = config.LoadOptional(workspace)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Overlay(cfg, v); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Options select the workspace and collaborators of Build. Zero values fall
// back to the process defaults.
type Options struct {
	Workspace string
	DBPath    string
	Config    *config.Config
	Logger    *zap.Logger
	Registry  *prometheus.Registry
	// Generator overrides the GenAI recommendation backend.
	Generator recommend.Generator
}

// App holds the wired components. Close releases the database.
type App struct {
	Config      *config.Config
	DB          *sql.DB
	Repo        repo.Repo
	Engine      engine.Engine
	Auth        auth.Service
	Recommender recommend.Service
	Catalog     content.Catalog
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry
}

// Build opens and migrates the workspace database and assembles every
// service from cfg.
func Build(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		l, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
		if err != nil {
			return nil, err
		}
		log = l
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := metrics.New(reg)

	conn, err := db.Open(db.Config{Workspace: opts.Workspace, Path: opts.DBPath})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	e := engine.New(conn, cfg)
	e.Logger = log.Named("intake")
	e.Metrics = m
	e.Notifier = notify.Mailer{Config: cfg.Mail, Logger: log.Named("mail")}

	gen := opts.Generator
	if gen == nil && cfg.AI.APIKey != "" {
		g, err := recommend.NewGenAIGenerator(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			conn.Close()
			return nil, err
		}
		gen = g
	}
	if gen == nil {
		log.Warn("ai.api_key not set; recommendations will fail")
	}
	secret := cfg.Auth.JWTSecret
	if strings.TrimSpace(secret) == "" {
		secret, err = ephemeralSecret()
		if err != nil {
			conn.Close()
			return nil, err
		}
		log.Warn("auth.jwt_secret not set; signing with a per-process key, tokens end at restart")
	}
	if !cfg.Mail.Configured() {
		log.Warn("mail.host not set; operator notifications are skipped")
	}

	return &App{
		Config: cfg,
		DB:     conn,
		Repo:   e.Repo,
		Engine: e,
		Auth: auth.Service{
			Users:   e.Repo,
			Secret:  secret,
			TTL:     cfg.Auth.TokenTTL.Std(),
			Logger:  log.Named("auth"),
			Metrics: m,
		},
		Recommender: recommend.Service{Generator: gen, Logger: log.Named("recommend"), Metrics: m},
		Catalog:     content.Catalog{Store: e.Repo, Logger: log.Named("catalog"), Metrics: m},
		Logger:      log,
		Metrics:     m,
		Registry:    reg,
	}, nil
}

func ephemeralSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Handler returns the HTTP API of a.
func (a *App) Handler() (http.Handler, error) {
	return server.New(server.Config{
		Engine:      a.Engine,
		Auth:        a.Auth,
		Recommender: a.Recommender,
		Catalog:     a.Catalog,
		Logger:      a.Logger.Named("http"),
		BasePath:    a.Config.Server.BasePath,
		Gatherer:    a.Registry,
	})
}

// Webhooks returns the dispatcher for the configured webhooks.
func (a *App) Webhooks() *server.WebhookDispatcher {
	return server.NewWebhookDispatcher(a.Repo, a.Config.Webhooks, a.Logger.Named("webhooks"), a.Metrics)
}

// Close waits for pending notifications and closes the database.
func (a *App) Close() error {
	a.Engine.Wait()
	return a.DB.Close()
}
