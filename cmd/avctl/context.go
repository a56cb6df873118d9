package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/nerrad567/sportsbar-av/internal/bridges/atlas"
	"github.com/nerrad567/sportsbar-av/internal/bridges/cec"
	"github.com/nerrad567/sportsbar-av/internal/bridges/ir"
	"github.com/nerrad567/sportsbar-av/internal/bridges/matrix"
	"github.com/nerrad567/sportsbar-av/internal/control"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/config"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/database"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/logging"

	_ "github.com/nerrad567/sportsbar-av/migrations"
)

const defaultConfigPath = "configs/config.yaml"

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logOnce sync.Once
	log     *logging.Logger

	out io.Writer
}

func newCommandContext(configFlag *string, jsonFlag *bool, out io.Writer) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
		out:        out,
	}
}

// ensureConfig loads the config file. An explicitly named file must exist;
// the default path falls back to built-in defaults.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path, explicit := c.configPath()
		cfg, err := config.Load(path)
		if err != nil {
			if !explicit && errors.Is(err, os.ErrNotExist) {
				c.config = config.Default()
				return
			}
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() (string, bool) {
	if c.configFlag != nil {
		if p := strings.TrimSpace(*c.configFlag); p != "" {
			return p, true
		}
	}
	if p := os.Getenv("SPORTSBAR_CONFIG"); p != "" {
		return p, true
	}
	return defaultConfigPath, false
}

// logger writes to stderr so table and JSON output stay clean. Info is
// raised to warn; set logging.level to debug for bus traces.
func (c *commandContext) logger() *logging.Logger {
	c.logOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.log = logging.New(config.LoggingConfig{Level: "warn", Output: "stderr"}, version)
			return
		}
		lc := cfg.Logging
		lc.Output = "stderr"
		if lc.Level == "" || lc.Level == "info" {
			lc.Level = "warn"
		}
		c.log = logging.New(lc, version)
	})
	return c.log
}

// openDB opens the database and applies pending migrations.
func (c *commandContext) openDB(ctx context.Context) (*database.DB, error) {
	db, err := c.openRawDB(ctx)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func (c *commandContext) openRawDB(ctx context.Context) (*database.DB, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
}

func (c *commandContext) router() (*matrix.Router, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Matrix.Host == "" {
		return nil, fmt.Errorf("matrix.host is not configured")
	}
	return matrix.NewRouter(matrix.Config{
		Host:     cfg.Matrix.Host,
		Port:     cfg.Matrix.Port,
		Protocol: matrix.Protocol(cfg.Matrix.Protocol),
		Timeout:  cfg.Matrix.Timeout,
	}), nil
}

func (c *commandContext) gateway() (*cec.Gateway, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return cec.NewGateway(cec.NewProcessTransport(cfg.CEC.Binary), cec.Config{
		Device:         cfg.CEC.Device,
		CommandTimeout: cfg.CEC.CommandTimeout,
		ScanCacheTTL:   cfg.CEC.ScanCacheTTL,
	}, c.logger()), nil
}

// audio connects to the audio processor. The caller must Disconnect.
func (c *commandContext) audio(ctx context.Context) (*atlas.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Audio.Host == "" {
		return nil, fmt.Errorf("audio.host is not configured")
	}
	client := atlas.NewClient(atlas.Config{
		Host:                 cfg.Audio.Host,
		Port:                 cfg.Audio.Port,
		ConnectTimeout:       cfg.Audio.ConnectTimeout,
		CommandTimeout:       cfg.Audio.CommandTimeout,
		KeepAliveInterval:    cfg.Audio.KeepAliveInterval,
		MaxMissedKeepAlives:  cfg.Audio.MaxMissedKeepAlives,
		ReconnectDelay:       cfg.Audio.ReconnectDelay,
		MaxReconnectAttempts: cfg.Audio.MaxReconnectAttempts,
	})
	client.SetLogger(c.logger())
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// orchestrator wires the paths enabled in config.
func (c *commandContext) orchestrator() (*control.Orchestrator, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	cc := control.Config{CECInput: cfg.Matrix.CECInput}
	if cfg.Matrix.Enabled && cfg.CEC.Enabled {
		router, err := c.router()
		if err != nil {
			return nil, err
		}
		gw, err := c.gateway()
		if err != nil {
			return nil, err
		}
		cc.Router = router
		cc.CEC = gw
	}
	if cfg.IR.Enabled {
		cc.IR = ir.NewClient(cfg.IR.BaseURL, cfg.IR.Timeout)
	}

	o := control.NewOrchestrator(cc)
	o.SetLogger(c.logger())
	return o, nil
}
