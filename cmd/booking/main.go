// Command booking runs travel-booking agent workflows.
//
// Usage:
//
//	booking serve --config booking.yaml
//	booking run "Seattle to New York in 10 days" --topology sequential --approval
//	booking version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	booking "github.com/jongalloway/travel-booking-agents"
	"github.com/jongalloway/travel-booking-agents/internal/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP server."`
	Run     RunCmd     `cmd:"" help:"Run a single travel request and print its progress."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path or URL of the YAML config file."`
	LogLevel  string `help:"Log level (debug, info, warn, error)." env:"LOG_LEVEL"`
	LogFormat string `help:"Log format (simple, text, json)." env:"LOG_FORMAT"`
	EnvFile   string `name:"env-file" help:"Load environment variables from a .env file." type:"path"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("booking version %s\n", booking.Version)
	return nil
}

// loadConfig reads the config file when given and applies CLI overrides.
func (c *CLI) loadConfig(ctx context.Context) (*booking.Config, error) {
	cfg := booking.DefaultConfig()
	if c.Config != "" {
		var err error
		if cfg, err = booking.LoadConfig(ctx, c.Config); err != nil {
			return nil, err
		}
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Log.Format = c.LogFormat
	}
	return cfg, nil
}

// initLogger installs the process logger described by cfg.
func initLogger(cfg *booking.Config) (*slog.Logger, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logger.Init(level, cfg.Log.Format, os.Stderr), nil
}

func loadEnv(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load()
	}
	return nil
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("booking"),
		kong.Description("Travel booking agent workflow orchestrator"),
		kong.UsageOnError(),
	)
	if err := loadEnv(cli.EnvFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}
	err := kctx.Run(&cli)
	kctx.FatalIfErrorf(err)
}
