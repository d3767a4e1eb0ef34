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

	"github.com/bodul/lightsout/internal/lights"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// options are the command-line overrides shared by all commands.
type options struct {
	configPath  string
	logLevel    string
	port        string
	gridSize    int
	pacingDelay time.Duration
	gcpModel    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "lightsout",
		Short: "Lights Out puzzle server",
		Long: `Serve the Lights Out puzzle in the browser, or replay its solution in the terminal.

Examples:
  lightsout serve --port 8080
  lightsout serve --config lightsout.toml
  lightsout play --pacing-delay 300ms`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "TOML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().DurationVar(&opts.pacingDelay, "pacing-delay", lights.DefaultPacingDelay, "Pause before each click of the solve replay")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	serveCmd.Flags().StringVarP(&opts.port, "port", "p", "", "Listen port (default 8080)")
	serveCmd.Flags().IntVar(&opts.gridSize, "grid-size", lights.DefaultSize, "Default side length of new boards")
	serveCmd.Flags().StringVar(&opts.gcpModel, "gcp-model", "", "Gemini model answering hints (default "+defaultModel+")")

	playCmd := &cobra.Command{
		Use:   "play",
		Short: "Replay the solution of the 5x5 board in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlay(cmd, opts)
		},
	}

	root.AddCommand(serveCmd, playCmd)
	return root
}

// loadConfig merges the configuration file, the environment and the flags
// explicitly set on cmd.
func loadConfig(cmd *cobra.Command, opts *options) (Config, error) {
	cfg, err := LoadConfig(opts.configPath, os.Getenv)
	if err != nil {
		return Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("pacing-delay") {
		cfg.PacingDelay = Duration(opts.pacingDelay)
	}
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("grid-size") {
		cfg.GridSize = opts.gridSize
	}
	if flags.Changed("gcp-model") {
		cfg.GCPModel = opts.gcpModel
	}
	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var coach Coach
	if cfg.GCPProject != "" {
		gemini, err := NewGeminiClient(ctx, cfg.Coach())
		if err != nil {
			return fmt.Errorf("init gemini: %w", err)
		}
		coach = gemini
		log.WithFields(logrus.Fields{
			"project": cfg.GCPProject,
			"model":   gemini.Model(),
		}).Info("gemini client ready")
	} else {
		log.Info("GCP_PROJECT_ID not set, hints disabled")
	}

	srv := NewServer(cfg, coach, log)
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":         "http://localhost:" + cfg.Port,
			"grid_size":    cfg.GridSize,
			"pacing_delay": cfg.Delay(),
		}).Info("server started")
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func runPlay(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return playSolve(ctx, cmd.OutOrStdout(), cfg.Delay(), log)
}

// playSolve replays the solve sequence on a fresh board drawn to w.
func playSolve(ctx context.Context, w io.Writer, delay time.Duration, log logrus.FieldLogger) error {
	grid, err := lights.NewGrid(lights.DefaultSize)
	if err != nil {
		return err
	}
	seq := lights.NewSequencer()
	view := newTerminalView(w, grid, len(seq.Steps()))

	fmt.Fprint(w, renderBoard(grid.Snapshot(), nil))
	if err := seq.Run(ctx, grid, delay, view); err != nil {
		_, step := seq.State()
		log.WithError(err).WithField("step", step).Warn("replay stopped")
		return err
	}
	if grid.Solved() {
		fmt.Fprintln(w, "Toutes les lumières sont éteintes !")
	}
	return nil
}
