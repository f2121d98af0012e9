package commands

import (
	"fmt"
	"os"

	"github.com/dj-oyu/motionglyph/internal/config"
	"github.com/dj-oyu/motionglyph/internal/logger"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

var (
	configPath string
	logLevel   string
	logColor   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "motionglyph",
	Short: "motionglyph - turn camera motion into a stream of symbols",
	Long: `motionglyph watches a sequence of frames, marks the grid regions whose
pixels changed, draws one random bit per frame with motion and maps every
completed 5-bit code to a letter of a shuffled 24-letter alphabet.

Frames come from a directory of images, a synthetic generator or HTTP
uploads. Events are streamed over SSE and optionally over a WebRTC data
channel and Redis pub/sub.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no subcommand is specified, show help
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a motionglyph.yml configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error, silent)")
	rootCmd.PersistentFlags().BoolVar(&logColor, "log-color", true, "Enable colored log output")
}

// loadConfig reads the configuration file (if any) and applies the global
// flags that were set explicitly.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := rootCmd.PersistentFlags()
	if flags.Changed("log-level") || configPath == "" {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-color") || configPath == "" {
		cfg.Log.Color = logColor
	}
	return cfg, nil
}

func initLogger(cfg config.Config) error {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger.Init(level, os.Stderr, cfg.Log.Color)
	logger.SetLevel(level)
	return nil
}
