// Command mqcomet-web serves the upload form and the evaluate API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/oukeidos/mqcomet/internal/auth"
	"github.com/oukeidos/mqcomet/internal/config"
	"github.com/oukeidos/mqcomet/internal/logger"
	"github.com/oukeidos/mqcomet/internal/pipeline"
	"github.com/oukeidos/mqcomet/internal/version"
	"github.com/oukeidos/mqcomet/internal/web"
)

type flags struct {
	addr        string
	configPath  string
	logLevel    string
	maxUploadMB int64
	showVersion bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := pflag.NewFlagSet("mqcomet-web", pflag.ContinueOnError)
	fs.StringVar(&f.addr, "addr", "", "Listen address (default from config, "+config.DefaultWebAddr+")")
	fs.StringVar(&f.configPath, "config", "", "Path to a YAML config file (default: ~/.mqcomet/config.yaml)")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.Int64Var(&f.maxUploadMB, "max-upload-mb", 0, "Upload size limit in MB (default from config)")
	fs.BoolVar(&f.showVersion, "version", false, "Print version and exit")
	err := fs.Parse(args)
	return f, err
}

// serverOptions derives the handler options from the config file; flags that
// were set win.
func serverOptions(cfg *config.Config, f flags) (web.Options, string) {
	addr := cfg.Web.Addr
	if f.addr != "" {
		addr = f.addr
	}
	maxMB := cfg.Web.MaxUploadMB
	if f.maxUploadMB > 0 {
		maxMB = f.maxUploadMB
	}
	return web.Options{
		Defaults: pipeline.Config{
			Backend:       cfg.Backend,
			Model:         cfg.Model,
			Endpoint:      cfg.Endpoint,
			BatchSize:     cfg.Web.BatchSize,
			MaxSegments:   cfg.MaxSegments,
			ScoreColumn:   cfg.ScoreColumn,
			ReferenceFree: cfg.ReferenceFree,
			Credentials: auth.Chain{
				Sources:    cfg.Web.TokenSources,
				DotenvPath: cfg.Dotenv,
			},
		},
		MaxUploadBytes: maxMB << 20,
	}, addr
}

func run(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.showVersion {
		fmt.Println(version.Info())
		return nil
	}
	logger.InitJSON(logger.ParseLevel(f.logLevel), os.Stdout)

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	opts, addr := serverOptions(cfg, f)
	s, err := web.New(opts)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "addr", addr, "backend", cfg.Backend, "max_upload_mb", opts.MaxUploadBytes>>20)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
