// page_verify loads a landing page in a headless browser, checks that its
// headline is visible and saves a screenshot.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ajsharma/page_verify/internal/browser"
	"github.com/ajsharma/page_verify/internal/config"
	"github.com/ajsharma/page_verify/internal/fixture"
	"github.com/ajsharma/page_verify/internal/report"
	"github.com/ajsharma/page_verify/internal/verify"
)

// Flag values. They only override the resolved config when set explicitly.
var (
	configPath string
	flagCfg    = config.DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "page_verify",
	Short: "Verify that a landing page renders its headline",
	Long: `page_verify opens the target URL in a headless browser, waits for the
heading to become visible and saves a full-page screenshot.

Failures after the browser has started are printed and the command still
exits 0, unless --strict is given.

Settings are resolved from defaults, then --config, then PAGE_VERIFY_*
environment variables, then flags.

Example:
  # Verify the dev server on localhost:3000
  page_verify

  # Serve a stand-in landing page and verify it
  page_verify serve --addr :3000 &
  page_verify --screenshot ./out/landing.png

  # Use Playwright and fail the process on a missing heading
  page_verify --driver playwright --strict`,
	SilenceUsage: true,
	RunE:         run,
}

var serveAddr string

// newLauncher is replaced in tests.
var newLauncher = browser.NewLauncher

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a stand-in landing page",
	Long: `Serve a static landing page with the expected heading. Besides "/", it
serves "/delayed" where the heading appears after a short delay and
"/hidden" where it is present but not rendered.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(cmd.ErrOrStderr(), logrus.InfoLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, serveAddr, log)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"YAML config file")

	// Target flags
	rootCmd.Flags().StringVarP(&flagCfg.TargetURL, "url", "u", flagCfg.TargetURL,
		"URL to verify")
	rootCmd.Flags().StringVar(&flagCfg.Role, "role", flagCfg.Role,
		"ARIA role of the element to wait for")
	rootCmd.Flags().StringVar(&flagCfg.Heading, "heading", flagCfg.Heading,
		"Accessible name of the element to wait for")
	rootCmd.Flags().BoolVar(&flagCfg.Exact, "exact", flagCfg.Exact,
		"Match the accessible name exactly and case-sensitively")

	// Output flags
	rootCmd.Flags().StringVarP(&flagCfg.ScreenshotPath, "screenshot", "o", flagCfg.ScreenshotPath,
		"Screenshot output path")
	rootCmd.Flags().BoolVar(&flagCfg.FullPage, "full-page", flagCfg.FullPage,
		"Capture the full scrollable page")
	rootCmd.Flags().StringVar(&flagCfg.EventsDir, "events-dir", flagCfg.EventsDir,
		"Write JSONL run events under this directory")

	// Browser flags
	rootCmd.Flags().StringVarP(&flagCfg.Driver, "driver", "d", flagCfg.Driver,
		"Browser driver: chromedp, playwright or rod")
	rootCmd.Flags().BoolVar(&flagCfg.Headless, "headless", flagCfg.Headless,
		"Run the browser headless")
	rootCmd.Flags().StringVar(&flagCfg.ChromePath, "chrome-path", flagCfg.ChromePath,
		"Chrome executable (default: auto-detect)")
	rootCmd.Flags().StringVarP(&flagCfg.RemotePort, "port", "p", flagCfg.RemotePort,
		"Attach to a Chrome already listening on this remote debugging port")

	// Timing flags
	rootCmd.Flags().DurationVar(&flagCfg.NavigateTimeout, "navigate-timeout", flagCfg.NavigateTimeout,
		"Timeout for loading the page")
	rootCmd.Flags().DurationVar(&flagCfg.VisibleTimeout, "visible-timeout", flagCfg.VisibleTimeout,
		"Timeout for the heading to become visible")
	rootCmd.Flags().DurationVar(&flagCfg.PollInterval, "poll-interval", flagCfg.PollInterval,
		"Interval between visibility checks")

	// Behavior flags
	rootCmd.Flags().StringVar(&flagCfg.LogLevel, "log-level", flagCfg.LogLevel,
		"Log level: debug, info, warn or error")
	rootCmd.Flags().BoolVar(&flagCfg.Strict, "strict", flagCfg.Strict,
		"Exit non-zero when verification fails")

	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":3000", "Listen address")

	rootCmd.Version = config.Version
	rootCmd.AddCommand(serveCmd)
}

// resolveConfig layers defaults, the config file, the environment and the
// flags the user set, then validates the result.
func resolveConfig(flags *pflag.FlagSet, path string, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	flags.Visit(func(f *pflag.Flag) {
		applyFlag(cfg, f.Name)
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlag copies the value of the named flag from flagCfg into cfg.
func applyFlag(cfg *config.Config, name string) {
	switch name {
	case "url":
		cfg.TargetURL = flagCfg.TargetURL
	case "role":
		cfg.Role = flagCfg.Role
	case "heading":
		cfg.Heading = flagCfg.Heading
	case "exact":
		cfg.Exact = flagCfg.Exact
	case "screenshot":
		cfg.ScreenshotPath = flagCfg.ScreenshotPath
	case "full-page":
		cfg.FullPage = flagCfg.FullPage
	case "events-dir":
		cfg.EventsDir = flagCfg.EventsDir
	case "driver":
		cfg.Driver = flagCfg.Driver
	case "headless":
		cfg.Headless = flagCfg.Headless
	case "chrome-path":
		cfg.ChromePath = flagCfg.ChromePath
	case "port":
		cfg.RemotePort = flagCfg.RemotePort
	case "navigate-timeout":
		cfg.NavigateTimeout = flagCfg.NavigateTimeout
	case "visible-timeout":
		cfg.VisibleTimeout = flagCfg.VisibleTimeout
	case "poll-interval":
		cfg.PollInterval = flagCfg.PollInterval
	case "log-level":
		cfg.LogLevel = flagCfg.LogLevel
	case "strict":
		cfg.Strict = flagCfg.Strict
	}
}

func newLogger(out io.Writer, level logrus.Level) *logrus.Logger {
	return &logrus.Logger{
		Out:       out,
		Formatter: &logrus.TextFormatter{FullTimestamp: true},
		Hooks:     make(logrus.LevelHooks),
		Level:     level,
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd.Flags(), configPath, os.LookupEnv)
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log := newLogger(cmd.ErrOrStderr(), level)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	launcher, err := newLauncher(cfg, log)
	if err != nil {
		return err
	}

	runID := report.NewRunID()
	opts := []verify.Option{
		verify.WithLogger(log),
		verify.WithOutput(cmd.OutOrStdout()),
		verify.WithRunID(runID),
	}

	if cfg.EventsDir != "" {
		path := report.EventsPath(cfg.EventsDir, report.ExtractSite(cfg.TargetURL), runID)
		w, err := report.Open(path)
		if err != nil {
			return err
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.WithError(err).Warn("Failed to close events file")
			}
		}()
		log.Debugf("Writing run events to %s", path)
		opts = append(opts, verify.WithEventSink(w))
	}

	log.Debugf("page_verify %s", config.Version)

	res, err := verify.NewRunner(cfg, launcher, opts...).Run(ctx)
	if err != nil {
		return err
	}

	if cfg.Strict && !res.OK() {
		return fmt.Errorf("verification failed: %w", res.Err)
	}
	return nil
}

// serve runs the fixture server on addr until ctx is done.
func serve(ctx context.Context, addr string, log logrus.FieldLogger) error {
	r := chi.NewRouter()
	r.Use(chimw.RequestLogger(&chimw.DefaultLogFormatter{Logger: log, NoColor: true}))
	r.Mount("/", fixture.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Serving landing page on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("Received shutdown signal...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
