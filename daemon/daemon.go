// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package daemon wires the configuration, stored credentials, plug driver,
// battery sensor, and power controller into a runnable monitoring process,
// with optional metrics serving and failure notifications around it.
package daemon

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ImaSet/laptop-smart-power-manager/battery"
	"github.com/ImaSet/laptop-smart-power-manager/config"
	"github.com/ImaSet/laptop-smart-power-manager/credentials"
	"github.com/ImaSet/laptop-smart-power-manager/pkg/logger"
	"github.com/ImaSet/laptop-smart-power-manager/pkg/notify"
	"github.com/ImaSet/laptop-smart-power-manager/plug"
	"github.com/ImaSet/laptop-smart-power-manager/power"

	// Register the Tapo driver models.
	_ "github.com/ImaSet/laptop-smart-power-manager/plug/tapo"
)

const (
	// livenessInterval is how often the foreground loop checks the
	// controller. The check also drains dispatcher events on platforms
	// that deliver interrupts by polling.
	livenessInterval = 100 * time.Millisecond

	// alertTimeout bounds notification delivery at startup and shutdown.
	alertTimeout = 10 * time.Second
)

// Daemon runs the power supply monitoring in the foreground.
type Daemon struct {
	cfg        *config.Config
	controller *power.Controller
	alerter    *notify.Alerter
	mqtt       *notify.MQTT
	server     *http.Server
	stopDebug  func()
	wg         sync.WaitGroup
}

// New builds a daemon from configuration: it opens the smart plug session
// with the stored credentials and constructs the monitoring controller,
// which forces the plug off and runs one decision cycle before returning.
func New(cfg *config.Config) (*Daemon, error) {
	store := credentials.NewStore()

	driver, err := plug.Connect(cfg.Plug.Model, cfg.Plug.Address, store)
	if err != nil {
		return nil, err
	}
	if info, infoErr := driver.Info(); infoErr == nil {
		logger.Debug().Fields(info).Msg("Smart plug device info")
	}

	settings := power.Settings{
		BatteryLow:         cfg.Battery.Low,
		BatteryHigh:        cfg.Battery.High,
		RefreshTime:        cfg.Monitoring.RefreshTime,
		StateChangeTimeout: cfg.Monitoring.StateChangeTimeout,
	}

	controller, err := power.NewController(driver, battery.NewSensor(), settings, true)
	if err != nil {
		return nil, err
	}

	return assemble(cfg, controller), nil
}

// assemble wires a controller to the notification channels and the metrics
// server described by the configuration.
func assemble(cfg *config.Config, controller *power.Controller) *Daemon {
	d := &Daemon{cfg: cfg, controller: controller}

	var channels []notify.Notifier
	if cfg.Notifications.Slack.Enabled {
		slack := notify.NewSlack(cfg.Notifications.Slack.WebhookURL)
		if slack.IsEnabled() {
			logger.Info().Msg("Slack notifications enabled")
		} else {
			logger.Info().Msg("Slack notifications disabled (no webhook URL configured)")
		}
		channels = append(channels, slack)
	}

	if cfg.Notifications.MQTT.Enabled {
		mqttCfg := cfg.Notifications.MQTT
		mqttChannel, err := notify.NewMQTT(mqttCfg.Broker, mqttCfg.ClientID, mqttCfg.Topic)
		if err != nil {
			// The daemon still protects the battery without its
			// notification channels.
			logger.Warn().Err(err).Str("broker", mqttCfg.Broker).Msg("MQTT notifications unavailable")
		} else {
			if mqttChannel.IsEnabled() {
				logger.Info().Str("topic", mqttCfg.Topic).Msg("MQTT notifications enabled")
			}
			d.mqtt = mqttChannel
			channels = append(channels, mqttChannel)
		}
	}

	d.alerter = notify.NewAlerter(notify.NewMulti(channels...))

	if cfg.Metrics.Enabled {
		d.server = newServer(cfg.Metrics.ListenAddr, controller)
	}

	return d
}

// Start launches the monitoring loop and the metrics server, and announces
// the start on the configured channels.
func (d *Daemon) Start() {
	d.controller.Start()
	d.startMetricsServer()
	d.stopDebug = d.setupDebugSignalHandlers()

	if d.alerter.IsEnabled() {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
			defer cancel()
			if err := d.alerter.SendMonitoringStarted(ctx, d.cfg.Battery.Low, d.cfg.Battery.High); err != nil {
				logger.Warn().Err(err).Msg("Failed to announce monitoring start")
			}
		}()
	}
}

// Stop requests a monitoring shutdown. Termination is observed through Wait.
func (d *Daemon) Stop() {
	d.controller.Stop()
}

// Wait blocks until monitoring ends, either on a stop request or a terminal
// error, then delivers the matching alert, shuts the metrics server down,
// and reports the deferred monitoring error.
func (d *Daemon) Wait() error {
	for d.controller.IsRunning() {
		time.Sleep(livenessInterval)
	}
	d.controller.Join()

	err := d.controller.Err()

	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()
	if err != nil {
		if alertErr := d.alerter.SendMonitoringFailure(ctx, err); alertErr != nil {
			logger.Warn().Err(alertErr).Msg("Failed to deliver the failure alert")
		}
	} else if alertErr := d.alerter.SendMonitoringStopped(ctx); alertErr != nil {
		logger.Warn().Err(alertErr).Msg("Failed to deliver the stop alert")
	}

	d.shutdown()

	return err
}

// startMetricsServer starts the HTTP server for metrics and health checks
func (d *Daemon) startMetricsServer() {
	if d.server == nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		logger.Info().Str("addr", d.server.Addr).Msg("Starting metrics and health check server")
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

// shutdown stops the metrics server, waits for the daemon's goroutines, and
// releases the MQTT connection.
func (d *Daemon) shutdown() {
	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := d.server.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
		} else {
			logger.Info().Msg("HTTP server stopped")
		}
	}

	d.wg.Wait()

	if d.stopDebug != nil {
		d.stopDebug()
	}
	if d.mqtt != nil {
		d.mqtt.Close()
	}
}
