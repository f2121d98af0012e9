package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dj-oyu/motionglyph/internal/broadcast"
	"github.com/dj-oyu/motionglyph/internal/config"
	"github.com/dj-oyu/motionglyph/internal/logger"
	"github.com/dj-oyu/motionglyph/internal/metrics"
	"github.com/dj-oyu/motionglyph/internal/server"
	"github.com/dj-oyu/motionglyph/internal/session"
	"github.com/dj-oyu/motionglyph/internal/sink"
	"github.com/dj-oyu/motionglyph/internal/source"
	"github.com/dj-oyu/motionglyph/internal/webrtc"
	"github.com/spf13/cobra"
)

var (
	serveAddr        string
	serveMetricsAddr string
	serveSource      string
	serveSourcePath  string
	serveFPS         int
	serveThreshold   int
	serveRegionSize  int
	serveWebRTC      bool
	serveRedisAddr   string
	serveAutoStart   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection service",
	Long: `Run one detection session behind an HTTP API.

The session starts idle. POST /api/start begins detection, frames are then
pulled from the configured source or uploaded to POST /api/frame. Events are
streamed on GET /api/events and Prometheus metrics are served on the
metrics address.

Examples:
  # Synthetic demo frames, detection running immediately
  motionglyph serve --source=synthetic --auto-start

  # Replay a directory of frames and publish symbols to Redis
  motionglyph serve --source=dir --source-path=./frames --redis-addr=localhost:6379`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP API address (default from config, :8080)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Metrics server address (default from config, :9090)")
	serveCmd.Flags().StringVar(&serveSource, "source", "", "Frame source: none, dir or synthetic")
	serveCmd.Flags().StringVar(&serveSourcePath, "source-path", "", "Frame directory for --source=dir")
	serveCmd.Flags().IntVar(&serveFPS, "fps", 0, "Source polling rate")
	serveCmd.Flags().IntVar(&serveThreshold, "threshold", 0, "Per-pixel motion threshold")
	serveCmd.Flags().IntVar(&serveRegionSize, "region-size", 0, "Grid cell size in pixels")
	serveCmd.Flags().BoolVar(&serveWebRTC, "webrtc", false, "Enable the WebRTC data channel feed")
	serveCmd.Flags().StringVar(&serveRedisAddr, "redis-addr", "", "Publish symbols to this Redis server")
	serveCmd.Flags().BoolVar(&serveAutoStart, "auto-start", false, "Start detecting immediately")

	rootCmd.AddCommand(serveCmd)
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.HTTP.Addr = serveAddr
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = serveMetricsAddr
	}
	if flags.Changed("source") {
		cfg.Source.Kind = serveSource
	}
	if flags.Changed("source-path") {
		cfg.Source.Path = serveSourcePath
	}
	if flags.Changed("fps") {
		cfg.Source.FPS = serveFPS
	}
	if flags.Changed("threshold") {
		cfg.Detection.Threshold = serveThreshold
	}
	if flags.Changed("region-size") {
		cfg.Detection.RegionSize = serveRegionSize
	}
	if flags.Changed("webrtc") {
		cfg.WebRTC.Enabled = serveWebRTC
	}
	if flags.Changed("redis-addr") {
		cfg.Redis.Enabled = serveRedisAddr != ""
		cfg.Redis.Addr = serveRedisAddr
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := initLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Main", "motionglyph %s starting...", rootCmd.Version)
	logger.Info("Main", "  HTTP server: %s", cfg.HTTP.Addr)
	logger.Info("Main", "  Metrics server: %s", cfg.Metrics.Addr)
	logger.Info("Main", "  Source: %s", cfg.Source.Kind)

	ctrl, err := newController(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	hub := broadcast.NewHub(0)
	norm := source.NewNormalizer(cfg.Source.Width, cfg.Source.Height)
	opts := []session.Option{
		session.WithMetrics(m),
		session.WithNormalizer(norm),
		session.WithPublisher(hub),
	}

	src, err := newSource(cfg, norm)
	if err != nil {
		return err
	}
	if src != nil {
		opts = append(opts, session.WithSource(src))
	}

	var rtc *webrtc.Server
	if cfg.WebRTC.Enabled {
		rtc = webrtc.NewServer(cfg.WebRTC.STUN, cfg.WebRTC.MaxClients)
		rtc.SetMetrics(m)
		defer rtc.Close()
		opts = append(opts, session.WithPublisher(rtc))
	}

	if cfg.Redis.Enabled {
		pub, err := sink.NewRedisPublisher(ctx, cfg.Redis.Addr, cfg.Redis.Channel)
		if err != nil {
			return err
		}
		defer pub.Close()
		opts = append(opts, session.WithPublisher(pub))
	}

	sess := session.New(ctrl, opts...)
	defer sess.Close()
	logger.Info("Main", "Session %s ready (alphabet=%s)", sess.ID(), ctrl.Alphabet())

	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		logger.Info("Main", "Starting metrics server on %s", cfg.Metrics.Addr)
		if err := m.StartServer(ctx, cfg.Metrics.Addr); err != nil {
			logger.Error("Main", "Metrics server error: %v", err)
		}
	}()

	if sess.HasSource() {
		go func() {
			if err := sess.Run(ctx, cfg.Source.FPS); err != nil {
				logger.Error("Reader", "Frame reader stopped: %v", err)
			}
		}()
	}

	if serveAutoStart {
		if err := sess.Start(ctx); err != nil {
			return err
		}
	}

	srv := server.New(server.Config{Addr: cfg.HTTP.Addr}, sess, hub, rtc)
	if err := srv.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	stop()
	<-metricsDone
	logger.Info("Main", "Server stopped")
	return nil
}
