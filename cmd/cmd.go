package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/anicoll/relaygate/internal/pkg/agent"
	"github.com/anicoll/relaygate/internal/pkg/agent/gpio"
	"github.com/anicoll/relaygate/internal/pkg/config"
	"github.com/anicoll/relaygate/internal/pkg/database"
	"github.com/anicoll/relaygate/internal/pkg/database/migration"
	"github.com/anicoll/relaygate/internal/pkg/gateway"
	"github.com/anicoll/relaygate/internal/pkg/model"
	"github.com/anicoll/relaygate/internal/pkg/mqtt"
	"github.com/anicoll/relaygate/internal/pkg/publisher"
	"github.com/anicoll/relaygate/pkg/hasher"
	"github.com/caarlos0/env/v11"
	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jackc/pgx/v5"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func GatewayCommand(ctx *cli.Context) error {
	cfg := &config.GatewayConfig{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	cfg.ListenAddr = ctx.String("listen-addr")
	cfg.DatabaseURL = ctx.String("database-url")
	cfg.MigrationsFolder = ctx.String("migrations-folder")
	cfg.InsecureMode = ctx.Bool("insecure-mode")

	mqttCfg := &config.MqttConfig{
		Host:     ctx.String("mqtt-host"),
		Username: ctx.String("mqtt-user"),
		Password: ctx.String("mqtt-pass"),
	}

	return runGateway(ctx.Context, cfg, mqttCfg, ctx.String("log-level"))
}

func AgentCommand(ctx *cli.Context) error {
	cfg := &config.AgentConfig{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	cfg.GatewayURL = ctx.String("gateway-url")
	cfg.Identity = ctx.String("device-identity")
	cfg.Secret = ctx.String("device-secret")
	if chip := ctx.String("gpio-chip"); chip != "" {
		cfg.GpioChip = chip
	}
	if path := ctx.String("state-file"); path != "" {
		cfg.StateFile = path
	}

	return runAgent(ctx.Context, cfg, ctx.String("log-level"))
}

// RegisterCommand provisions a device record with its shared secret and
// factory switch map so the device can identify.
func RegisterCommand(ctx *cli.Context) error {
	logger, err := setupLogger(ctx.String("log-level"))
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	conn, err := pgx.Connect(ctx.Context, ctx.String("database-url"))
	if err != nil {
		return err
	}
	defer conn.Close(ctx.Context)
	db := database.NewDatabase(ctx.Context, conn)

	secret := ctx.String("device-secret")
	if secret == "" {
		secret, err = hasher.GenerateToken(32)
		if err != nil {
			return err
		}
		// printed once; the plain key never leaves this terminal again
		fmt.Printf("generated device secret: %s\n", secret)
	}
	stored := secret
	if ctx.Bool("hash-secret") {
		if stored, err = hasher.HashSecret([]byte(secret)); err != nil {
			return err
		}
		logger.Warn("storing a hashed secret disables signature verification for the device")
	}

	var switches []model.SwitchConfig
	if path := ctx.String("switches-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &switches); err != nil {
			return fmt.Errorf("switches file %s: %w", path, err)
		}
	}

	identity := ctx.String("device-identity")
	if err := db.RegisterDevice(ctx.Context, identity, stored, switches); err != nil {
		return err
	}
	logger.Info("device registered",
		zap.String("identity", identity),
		zap.Int("switches", len(switches)))
	return nil
}

func setupLogger(level string) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()

	var err error
	logCfg.Level, err = zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	logger := zap.Must(logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)))
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func runGateway(ctx context.Context, cfg *config.GatewayConfig, mqttCfg *config.MqttConfig, logLevel string) error {
	errorChan := make(chan error, 1000)

	eg, ctx := errgroup.WithContext(ctx)
	logger, err := setupLogger(logLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()

	if cfg.MigrationsFolder != "" {
		if err := migration.Migrate(cfg.DatabaseURL, cfg.MigrationsFolder); err != nil {
			return err
		}
	}

	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	db := database.NewDatabase(ctx, conn)

	if err := publisher.RegisterPublisher("postgres", database.NewRecorder(db)); err != nil {
		return err
	}

	if mqttCfg.Host != "" {
		opts := paho_mqtt.NewClientOptions().
			AddBroker(mqttCfg.Host).
			SetUsername(mqttCfg.Username).
			SetPassword(mqttCfg.Password).
			SetClientID("relaygate-gateway").
			SetAutoReconnect(true)
		mqttSvc := mqtt.New(paho_mqtt.NewClient(opts), "relaygate")
		if err := mqttSvc.Connect(); err != nil {
			return err
		}
		if err := publisher.RegisterPublisher("mqtt", mqttSvc); err != nil {
			return err
		}
	}

	sink := publisher.NewHub()
	registry := gateway.NewRegistry(db)
	server := gateway.NewServer(cfg, db, sink, registry)
	reconciler := gateway.NewReconciler(db, sink, registry, cfg.LivenessTimeout)

	eg.Go(func() error {
		return server.Run(ctx)
	})

	eg.Go(func() error {
		return cronLivenessSweep(ctx, reconciler, errorChan)
	})

	eg.Go(func() error {
		return cronDbCleanup(db, errorChan)
	})

	eg.Go(func() error {
		// handle any async errors from the services
		for {
			select {
			case err := <-errorChan:
				if errors.Is(err, errCron) {
					logger.Error("cron error", zap.Error(err))
					return err
				}
			case <-ctx.Done():
				logger.Info("context done")
				return ctx.Err()
			}
		}
	})

	return eg.Wait()
}

var errCron = errors.New("cron error")

func cronLivenessSweep(ctx context.Context, reconciler *gateway.Reconciler, errChan chan error) error {
	c := cron.New()
	if _, err := c.AddFunc("@every 1m", func() {
		if err := reconciler.MarkStaleOffline(ctx); err != nil {
			zap.L().Error("error sweeping stale devices", zap.Error(err))
			errChan <- errCron
			return
		}
	}); err != nil {
		return err
	}

	c.Run()
	return nil
}

func cronDbCleanup(db *database.Database, errChan chan error) error {
	if err := db.Cleanup(context.Background()); err != nil {
		return err
	}

	c := cron.New()
	if _, err := c.AddFunc("0 3 * * *", func() {
		if err := db.Cleanup(context.Background()); err != nil {
			zap.L().Error("error cleaning up database", zap.Error(err))
			errChan <- errCron
			return
		}
		zap.L().Info("pruned expired audit rows")
	}); err != nil {
		return err
	}

	c.Run()
	return nil
}

func runAgent(ctx context.Context, cfg *config.AgentConfig, logLevel string) error {
	logger, err := setupLogger(logLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	var chip gpio.Chip
	if cfg.GpioChip == "memory" {
		chip = gpio.NewMemoryChip()
	} else {
		cdev, err := gpio.OpenCdev(cfg.GpioChip)
		if err != nil {
			return err
		}
		defer cdev.Close()
		chip = cdev
	}

	store := agent.NewFileStore(cfg.StateFile)

	restart := func() {
		logger.Error("restart requested, exiting for supervisor")
		_ = logger.Sync()
		os.Exit(2)
	}

	a := agent.New(cfg, chip, store, restart)
	if err := a.Boot(nil); err != nil {
		return err
	}
	return a.Run(ctx)
}
