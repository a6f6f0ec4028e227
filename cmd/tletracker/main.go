package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/star/tletracker/internal/api"
	"github.com/star/tletracker/internal/auth"
	"github.com/star/tletracker/internal/metrics"
	"github.com/star/tletracker/internal/tle"
	"github.com/star/tletracker/internal/tracker"
	"github.com/star/tletracker/internal/transport"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("TLETRACKER_LOG_LEVEL")),
	}))

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	apiCfg := loadAPIConfig(logger, authCfg)
	mqttCfg := loadMQTTConfig(logger)
	seedCfg := loadSeedConfig(logger)

	name := os.Getenv("TLETRACKER_SATELLITE_NAME")
	if name == "" {
		name = "CubeSat"
	}

	state := tracker.NewState(name, tracker.LoadSGP4)
	client := transport.New(mqttCfg, logger)
	coordinator := tracker.NewCoordinator(state, client, time.Now, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seed(ctx, seedCfg, coordinator, logger)

	client.Start(ctx, coordinator)

	// Background goroutine to update TLE age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SetTLEAge(state.AgeSeconds(time.Now()))
			case <-ctx.Done():
				return
			}
		}
	}()

	srv := api.NewServer(apiCfg, logger, state, coordinator)
	go func() {
		logger.Info("starting server", "addr", apiCfg.Addr, "auth_enabled", authCfg.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	client.Stop()

	logger.Info("stopped")
}

type seedConfig struct {
	File    string
	URL     string
	NORADID int
}

// seed installs an initial TLE from a file or URL. Failures are logged and
// the service starts empty.
func seed(ctx context.Context, cfg seedConfig, coordinator *tracker.Coordinator, logger *slog.Logger) {
	var (
		data   []byte
		source string
		err    error
	)
	switch {
	case cfg.File != "":
		source = cfg.File
		data, err = os.ReadFile(cfg.File)
	case cfg.URL != "":
		source = cfg.URL
		fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		data, err = tle.NewFetcher(cfg.URL, logger).Fetch(fetchCtx)
		cancel()
	default:
		logger.Info("no TLE seed configured, waiting for cubesat/tle")
		return
	}
	if err != nil {
		logger.Warn("reading TLE seed failed", "source", source, "error", err)
		return
	}

	line1, line2, err := tle.SelectPair(data, cfg.NORADID, logger)
	if err != nil {
		logger.Warn("no usable TLE in seed", "source", source, "error", err)
		return
	}

	var payload bytes.Buffer
	payload.WriteString(line1)
	payload.WriteByte('\n')
	payload.WriteString(line2)
	if err := coordinator.Ingest(payload.Bytes()); err != nil {
		logger.Warn("seed TLE rejected", "source", source, "error", err)
		return
	}
	logger.Info("seeded TLE", "source", source)
}

func logLevel(v string) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("TLETRACKER_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("TLETRACKER_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("TLETRACKER_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("TLETRACKER_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadAPIConfig(logger *slog.Logger, authCfg auth.Config) api.Config {
	cfg := api.Config{
		Addr: ":8080",
		Auth: authCfg,
	}

	if v := os.Getenv("TLETRACKER_HTTP_ADDR"); v != "" {
		cfg.Addr = v
	}

	if v := os.Getenv("TLETRACKER_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid TLETRACKER_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	return cfg
}

func loadMQTTConfig(logger *slog.Logger) transport.Config {
	cfg := transport.Config{
		Host:      "localhost",
		Port:      1883,
		ClientID:  "tle-tracker",
		KeepAlive: 60 * time.Second,
		QoS:       0,
	}

	if v := os.Getenv("TLETRACKER_MQTT_HOST"); v != "" {
		cfg.Host = v
	}

	if v := os.Getenv("TLETRACKER_MQTT_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 65535 {
			logger.Warn("invalid TLETRACKER_MQTT_PORT value, using default", "value", v, "default", 1883)
		} else {
			cfg.Port = n
		}
	}

	if v := os.Getenv("TLETRACKER_MQTT_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}

	cfg.Username = os.Getenv("TLETRACKER_MQTT_USERNAME")
	cfg.Password = os.Getenv("TLETRACKER_MQTT_PASSWORD")

	if v := os.Getenv("TLETRACKER_MQTT_KEEPALIVE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid TLETRACKER_MQTT_KEEPALIVE value, using default", "value", v, "default", 60)
		} else {
			cfg.KeepAlive = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("TLETRACKER_MQTT_QOS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 2 {
			logger.Warn("invalid TLETRACKER_MQTT_QOS value, using default", "value", v, "default", 0)
		} else {
			cfg.QoS = byte(n)
		}
	}

	logger.Info("mqtt config",
		"broker", cfg.BrokerURL(),
		"client_id", cfg.ClientID,
		"username_set", cfg.Username != "",
		"keepalive_seconds", cfg.KeepAlive.Seconds(),
		"qos", cfg.QoS,
	)

	return cfg
}

func loadSeedConfig(logger *slog.Logger) seedConfig {
	cfg := seedConfig{
		File: os.Getenv("TLETRACKER_TLE_FILE"),
		URL:  os.Getenv("TLETRACKER_TLE_URL"),
	}

	if v := os.Getenv("TLETRACKER_TLE_NORAD_ID"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid TLETRACKER_TLE_NORAD_ID value, using first entry", "value", v)
		} else {
			cfg.NORADID = n
		}
	}

	if cfg.File != "" || cfg.URL != "" {
		logger.Info("TLE seed config", "file", cfg.File, "url", cfg.URL, "norad_id", cfg.NORADID)
	}

	return cfg
}
