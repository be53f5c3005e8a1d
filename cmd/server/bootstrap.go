package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gin-gonic/gin"

	"github.com/pulsemetrics/pulseboard/internal/api"
	"github.com/pulsemetrics/pulseboard/internal/app"
	"github.com/pulsemetrics/pulseboard/internal/channels"
	"github.com/pulsemetrics/pulseboard/internal/database"
	"github.com/pulsemetrics/pulseboard/internal/engine"
	"github.com/pulsemetrics/pulseboard/internal/realtime"
	"github.com/pulsemetrics/pulseboard/internal/scheduler"
	"github.com/pulsemetrics/pulseboard/internal/storage"
	"github.com/pulsemetrics/pulseboard/pkg/logger"
	"github.com/pulsemetrics/pulseboard/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Store     *storage.Store
	Manager   *engine.Manager
	Hub       *realtime.Hub
	Scheduler *scheduler.Scheduler
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, notification engine, delivery
// adapters, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Store = storage.NewStore(stack.DB)
	stack.Hub = realtime.NewHub(logger.WithModule("realtime"))

	adapters, err := buildAdapters(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store := stack.Store
	hub := stack.Hub
	stack.Manager = engine.NewManager(func(userID string) (*engine.Service, error) {
		svc := engine.NewService(
			engine.WithAdapters(adapters...),
			engine.WithLogger(logger.WithModule("engine")),
		)

		snap, found, err := store.LoadSnapshot(userID)
		if err != nil {
			return nil, fmt.Errorf("load snapshot for %s: %w", userID, err)
		}
		if found {
			if err := svc.Restore(snap); err != nil {
				return nil, fmt.Errorf("restore snapshot for %s: %w", userID, err)
			}
		}

		svc.Subscribe(storage.NewPersister(userID, svc, store, logger.WithModule("storage")))
		svc.Subscribe(realtime.NewBridge(userID, svc, hub))
		return svc, nil
	})

	if cfg.Scheduler.Enabled {
		stack.Scheduler = scheduler.New(stack.Manager, nil,
			scheduler.WithEvaluationSchedule(cfg.Scheduler.Evaluation),
			scheduler.WithDigestSchedules(cfg.Scheduler.DigestHourly, cfg.Scheduler.DigestDaily, cfg.Scheduler.DigestWeekly),
		)
		if err := stack.Scheduler.Start(); err != nil {
			return nil, fmt.Errorf("start scheduler: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(stack.Manager, stack.Hub, stack.DB)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs, flushes in-flight deliveries, and releases
// the database handle.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		stopCtx := s.Scheduler.Stop()
		if stopCtx != nil {
			<-stopCtx.Done()
		}
	}

	if s.Manager != nil {
		s.Manager.Close()
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func buildAdapters(ctx context.Context, cfg *app.Config, log *zap.Logger) ([]engine.Adapter, error) {
	var adapters []engine.Adapter

	if cfg.Email.SMTP.Enabled {
		mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
		if err != nil {
			return nil, fmt.Errorf("initialise mailer: %w", err)
		}
		adapters = append(adapters, channels.NewEmailAdapter(mailer, cfg.Email.Recipients))
		log.Info("email channel enabled", zap.Int("recipients", len(cfg.Email.Recipients)))
	}

	if cfg.Slack.Enabled {
		adapters = append(adapters, channels.NewSlackAdapter(cfg.Slack.WebhookURL))
		log.Info("slack channel enabled")
	}

	if cfg.Push.Enabled {
		push, err := channels.NewPushAdapter(ctx, cfg.Push.Region, cfg.Push.TopicARN)
		if err != nil {
			return nil, fmt.Errorf("initialise push channel: %w", err)
		}
		adapters = append(adapters, push)
		log.Info("push channel enabled", zap.String("region", cfg.Push.Region))
	}

	return adapters, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseConfigFor()
	dbCfg.Driver = strings.ToLower(strings.TrimSpace(dbCfg.Driver))
	if dbCfg.Driver == "" {
		dbCfg.Driver = "sqlite"
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
