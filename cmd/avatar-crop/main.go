package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/menta2k/avatarcrop/internal/config"
	"github.com/menta2k/avatarcrop/internal/logging"
	"github.com/menta2k/avatarcrop/internal/metrics"
	"github.com/menta2k/avatarcrop/internal/server"
)

const (
	cropCmd  = "crop"
	serveCmd = "serve"
)

const defaultTimeout = 30

func main() {
	if len(os.Args[1:]) < 1 {
		fmt.Printf("avatar-crop: one of the following commands expected: '%v'\n", []string{cropCmd, serveCmd})
		os.Exit(1)
	}
	cmdName := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmdName {
	case cropCmd:
		err = runCrop(args)
	case serveCmd:
		err = runServe(args)
	default:
		err = fmt.Errorf("unknown sub-command: %s", cmdName)
	}
	if err != nil {
		fmt.Printf("avatar-crop: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file when given, else the defaults, then
// applies the log level override.
func loadConfig(path, logLVL string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if logLVL != "" {
		cfg.Log.Level = logLVL
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lvl, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := []logging.Option{logging.WithLevel(lvl)}
	if strings.TrimSpace(cfg.Log.File) != "" {
		opts = append(opts, logging.WithFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays))
	}
	return logging.New(opts...), nil
}

func runServe(args []string) error {
	var (
		configPath string
		logLVL     string
		port       int
		timeout    int
	)
	cmd := flag.NewFlagSet(serveCmd, flag.ExitOnError)
	cmd.StringVar(&configPath, "config", "", "path to a JSON or YAML config file")
	cmd.StringVar(&logLVL, "loglvl", "", "set logging level: 'debug', 'info', 'error'")
	cmd.IntVar(&port, "port", 0, "set HTTP server port (overrides config)")
	cmd.IntVar(&timeout, "timeout", defaultTimeout, "set HTTP server timeout seconds")
	if err := cmd.Parse(args); err != nil {
		return fmt.Errorf("error parsing arguments: %w", err)
	}

	cfg, err := loadConfig(configPath, logLVL)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	uploader, err := buildUploader(cfg)
	if err != nil {
		return err
	}
	hinter, err := buildHinter(cfg)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Port:     cfg.Server.Port,
		Timeout:  time.Duration(timeout) * time.Second,
		Pipeline: buildPipeline(cfg),
		Uploader: uploader,
		Hinter:   hinter,
		Session:  cfg.SessionSettings(),
		Logger:   logger,
		Metrics:  metrics.New(),
	})
	srv.Run()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	logger.Info("Interrupt signal received, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()
	srv.Stop(ctx)
	return nil
}
