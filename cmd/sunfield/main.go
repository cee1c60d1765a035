package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sunfield/sunfield/internal/api"
	"github.com/sunfield/sunfield/internal/auth"
	"github.com/sunfield/sunfield/internal/config"
	"github.com/sunfield/sunfield/internal/exposure"
	"github.com/sunfield/sunfield/internal/geo"
	"github.com/sunfield/sunfield/internal/mqtt"
	"github.com/sunfield/sunfield/internal/shade"
	"github.com/sunfield/sunfield/internal/solar"
	"github.com/sunfield/sunfield/internal/storage"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "sunfield",
		Short: "Solar shadow analysis for garden planning",
		Long:  "Computes sun positions, sunrise/sunset, obstacle shadows, and per-zone sun exposure",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(suntimesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := newLogger(cfg.Server.LogLevel)

			db, err := storage.Open(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			logger.Info("database opened", "path", cfg.Database.Path)

			publisher, err := mqtt.NewPublisher(mqtt.Config{
				Enabled:     cfg.MQTT.Enabled,
				Broker:      cfg.MQTT.Broker,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				TopicPrefix: cfg.MQTT.TopicPrefix,
			}, logger)
			if err != nil {
				return fmt.Errorf("mqtt publisher: %w", err)
			}
			defer publisher.Close()

			engine := exposure.NewEngine(cfg.Engine.Workers, logger)

			srv := api.NewServer(cfg.Server.Addr, logger, api.Deps{
				Engine:             engine,
				DB:                 db,
				Publisher:          publisher,
				Auth:               auth.Config{Enabled: cfg.Auth.Enabled, Token: cfg.Auth.Token},
				TrustProxy:         cfg.Server.TrustProxy,
				SampleStep:         cfg.Engine.SampleStep,
				MaxConcurrentGrids: cfg.Engine.MaxConcurrentGrids,
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.MQTT.Enabled {
				go publishHomeSunTimes(ctx, cfg.Home, publisher, logger)
			}

			go func() {
				logger.Info("starting server",
					"addr", cfg.Server.Addr,
					"auth_enabled", cfg.Auth.Enabled,
					"workers", cfg.Engine.Workers,
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server listen error", "error", err)
					os.Exit(1)
				}
			}()

			<-ctx.Done()
			logger.Info("shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}

			logger.Info("server stopped")
			return nil
		},
	}
}

func analyzeCmd() *cobra.Command {
	var (
		lat, lon      float64
		dateStr       string
		obstaclesFile string
		stepMinutes   int
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute one day of shade for a point",
		Long:  "Read an obstacle set from a JSON file and print the daily shade analysis for a point",
		RunE: func(cmd *cobra.Command, args []string) error {
			point, err := geo.NewCoordinates(lat, lon)
			if err != nil {
				return err
			}
			date, err := solar.ParseDate(dateStr)
			if err != nil {
				return err
			}

			var obstacles []shade.Obstacle
			if obstaclesFile != "" {
				data, err := os.ReadFile(obstaclesFile)
				if err != nil {
					return fmt.Errorf("read obstacles: %w", err)
				}
				if err := json.Unmarshal(data, &obstacles); err != nil {
					return fmt.Errorf("parse obstacles: %w", err)
				}
			}

			step := time.Duration(stepMinutes) * time.Minute
			analysis, err := shade.Daily(cmd.Context(), point, date, obstacles, step)
			if err != nil {
				return err
			}

			out := struct {
				Point    geo.Coordinates `json:"point"`
				Date     string          `json:"date"`
				Times    solar.SunTimes  `json:"times"`
				Analysis shade.Analysis  `json:"analysis"`
			}{
				Point:    point,
				Date:     dateStr,
				Times:    solar.TimesFor(point, date),
				Analysis: analysis,
			}

			encoded, _ := json.MarshalIndent(out, "", "  ")
			fmt.Println(string(encoded))
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude in degrees")
	cmd.Flags().StringVar(&dateStr, "date", time.Now().UTC().Format(time.DateOnly), "date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&obstaclesFile, "obstacles", "", "JSON file with the obstacle set")
	cmd.Flags().IntVar(&stepMinutes, "step", 10, "sampling step in minutes")
	cobra.CheckErr(cmd.MarkFlagRequired("lat"))
	cobra.CheckErr(cmd.MarkFlagRequired("lon"))

	return cmd
}

func suntimesCmd() *cobra.Command {
	var (
		lat, lon float64
		dateStr  string
	)

	cmd := &cobra.Command{
		Use:   "suntimes",
		Short: "Print sunrise, sunset, and day length for a point",
		RunE: func(cmd *cobra.Command, args []string) error {
			point, err := geo.NewCoordinates(lat, lon)
			if err != nil {
				return err
			}
			date, err := solar.ParseDate(dateStr)
			if err != nil {
				return err
			}

			encoded, _ := json.MarshalIndent(solar.TimesFor(point, date), "", "  ")
			fmt.Println(string(encoded))
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude in degrees")
	cmd.Flags().StringVar(&dateStr, "date", time.Now().UTC().Format(time.DateOnly), "date (YYYY-MM-DD)")
	cobra.CheckErr(cmd.MarkFlagRequired("lat"))
	cobra.CheckErr(cmd.MarkFlagRequired("lon"))

	return cmd
}

// publishHomeSunTimes publishes the home location's sun times once at
// startup and again after each UTC midnight.
func publishHomeSunTimes(ctx context.Context, home config.HomeConfig, publisher *mqtt.Publisher, logger *slog.Logger) {
	point, err := geo.NewCoordinates(home.Latitude, home.Longitude)
	if err != nil {
		logger.Warn("home location invalid, skipping sun times publication", "error", err)
		return
	}

	publish := func() {
		now := time.Now().UTC()
		if err := publisher.PublishSunTimes(now, solar.TimesFor(point, now)); err != nil {
			logger.Warn("sun times publish failed", "error", err)
		}
	}

	publish()
	for {
		next := time.Now().UTC().Truncate(24 * time.Hour).Add(24*time.Hour + time.Minute)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			publish()
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
