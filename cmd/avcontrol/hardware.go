package main

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/sportsbar-av/internal/bridges/atlas"
	"github.com/nerrad567/sportsbar-av/internal/bridges/cec"
	"github.com/nerrad567/sportsbar-av/internal/bridges/ir"
	"github.com/nerrad567/sportsbar-av/internal/bridges/matrix"
	"github.com/nerrad567/sportsbar-av/internal/control"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/config"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/influxdb"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/logging"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/mqtt"
	"github.com/nerrad567/sportsbar-av/internal/metering"
)

// audioSupervisorInterval is how often a dead audio processor link is
// re-dialled once the client has given up reconnecting on its own.
const audioSupervisorInterval = 30 * time.Second

// hardware holds the device bridges enabled in config. Disabled bridges
// stay nil.
type hardware struct {
	matrix  *recordedRouter
	gateway *cec.Gateway
	hotplug *cec.HotplugMonitor
	ir      *ir.Client
	audio   *atlas.Client
	meters  *metering.Recorder

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startHardware(ctx context.Context, cfg *config.Config, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) *hardware {
	ctx, cancel := context.WithCancel(ctx)
	hw := &hardware{cancel: cancel}

	if cfg.Matrix.Enabled {
		hw.matrix = &recordedRouter{
			router: matrix.NewRouter(matrix.Config{
				Host:     cfg.Matrix.Host,
				Port:     cfg.Matrix.Port,
				Protocol: matrix.Protocol(cfg.Matrix.Protocol),
				Timeout:  cfg.Matrix.Timeout,
			}),
			points: influxClient,
		}
		log.Info("matrix router ready", "host", cfg.Matrix.Host, "port", cfg.Matrix.Port,
			"protocol", cfg.Matrix.Protocol, "cec_input", cfg.Matrix.CECInput)
	} else {
		log.Info("matrix disabled, CEC control unavailable")
	}

	if cfg.CEC.Enabled {
		hw.gateway = cec.NewGateway(cec.NewProcessTransport(cfg.CEC.Binary), cec.Config{
			Device:         cfg.CEC.Device,
			CommandTimeout: cfg.CEC.CommandTimeout,
			ScanCacheTTL:   cfg.CEC.ScanCacheTTL,
		}, log)
		state := "available"
		if _, err := hw.gateway.Initialize(ctx); err != nil {
			// Commands re-initialise on demand, so a missing adapter is not fatal.
			log.Warn("CEC adapter not ready", "error", err)
			state = "unavailable"
		}
		if influxClient != nil {
			influxClient.WriteBridgeState("cec", state, time.Now())
		}

		if cfg.CEC.Hotplug {
			hw.hotplug = cec.NewHotplugMonitor(hw.gateway, cfg.CEC.Device, log)
			if err := hw.hotplug.Start(ctx); err != nil {
				log.Warn("CEC hotplug monitor not started", "error", err)
			}
		}
	}

	if cfg.IR.Enabled {
		hw.ir = ir.NewClient(cfg.IR.BaseURL, cfg.IR.Timeout)
		log.Info("IR client ready", "base_url", cfg.IR.BaseURL)
	}

	if cfg.Audio.Enabled {
		hw.audio = atlas.NewClient(atlas.Config{
			Host:                 cfg.Audio.Host,
			Port:                 cfg.Audio.Port,
			ConnectTimeout:       cfg.Audio.ConnectTimeout,
			CommandTimeout:       cfg.Audio.CommandTimeout,
			KeepAliveInterval:    cfg.Audio.KeepAliveInterval,
			MaxMissedKeepAlives:  cfg.Audio.MaxMissedKeepAlives,
			ReconnectDelay:       cfg.Audio.ReconnectDelay,
			MaxReconnectAttempts: cfg.Audio.MaxReconnectAttempts,
		})
		hw.audio.SetLogger(log)

		meters := make([]metering.Meter, 0, len(cfg.Audio.Meters))
		for _, m := range cfg.Audio.Meters {
			meters = append(meters, metering.Meter{Param: m.Param, Interval: m.Interval})
		}
		var points metering.Points
		if influxClient != nil {
			points = influxClient
		}
		hw.meters = metering.NewRecorder(metering.Config{
			Meters:    meters,
			Source:    hw.audio,
			Publisher: mqttClient,
			Points:    points,
		})
		hw.meters.SetLogger(log)
		hw.audio.SetOnStateChange(hw.meters.HandleStateChange)

		if err := hw.audio.Connect(ctx); err != nil {
			log.Warn("audio processor not reachable, will keep trying", "addr", hw.audio.Addr(), "error", err)
		}
		hw.wg.Add(1)
		go hw.superviseAudio(ctx, log)
	}

	return hw
}

// superviseAudio re-dials the audio processor after the client has given
// up, so a processor power cycle longer than the reconnect budget heals.
func (hw *hardware) superviseAudio(ctx context.Context, log *logging.Logger) {
	defer hw.wg.Done()
	ticker := time.NewTicker(audioSupervisorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch hw.audio.State() {
			case atlas.StateDisconnected, atlas.StateError:
				if err := hw.audio.Connect(ctx); err != nil {
					log.Debug("audio processor still unreachable", "error", err)
				}
			}
		}
	}
}

// controlConfig builds the orchestrator config. Nil bridges must not
// reach the interfaces as typed nils.
func (hw *hardware) controlConfig(cfg *config.Config) control.Config {
	cc := control.Config{CECInput: cfg.Matrix.CECInput}
	if hw.matrix != nil {
		cc.Router = hw.matrix
	}
	if hw.gateway != nil {
		cc.CEC = hw.gateway
	}
	if hw.ir != nil {
		cc.IR = hw.ir
	}
	return cc
}

func (hw *hardware) router() control.Router {
	if hw.matrix == nil {
		return nil
	}
	return hw.matrix
}

func (hw *hardware) audioSetter() control.AudioSetter {
	if hw.audio == nil {
		return nil
	}
	return hw.audio
}

func (hw *hardware) stop(log *logging.Logger) {
	hw.cancel()
	if hw.hotplug != nil {
		log.Info("stopping CEC hotplug monitor")
		hw.hotplug.Stop()
	}
	if hw.gateway != nil {
		hw.gateway.Shutdown()
	}
	if hw.audio != nil {
		log.Info("disconnecting from audio processor")
		if err := hw.audio.Disconnect(); err != nil {
			log.Warn("error disconnecting audio processor", "error", err)
		}
	}
	hw.wg.Wait()
}

// recordedRouter writes every crosspoint attempt to InfluxDB.
type recordedRouter struct {
	router *matrix.Router
	points *influxdb.Client
}

func (r *recordedRouter) Route(ctx context.Context, input, output int) error {
	err := r.router.Route(ctx, input, output)
	if r.points != nil {
		r.points.WriteRoute(input, output, err == nil, time.Now())
	}
	return err
}
