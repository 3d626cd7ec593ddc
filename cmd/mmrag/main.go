package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mmrag/internal/config"
	"mmrag/internal/llm/gemini"
	"mmrag/internal/loader"
	"mmrag/internal/service"
	"mmrag/internal/tui"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "mmrag",
		Short:        "Ask questions over an indexed set of text, tables and images",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := setup(cmd.Context(), cfgPath, true)
			if err != nil {
				return err
			}
			defer app.close()
			return tui.Run(cmd.Context(), app.svc, app.index.Describe(cmd.Context()))
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml if present)")

	root.AddCommand(&cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd.Context(), cfgPath, false)
			if err != nil {
				return err
			}
			defer app.close()
			answer, err := app.svc.Answer(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), answer)
			return err
		},
	})
	return root
}

type app struct {
	svc     *service.RAGServiceImpl
	index   *loader.Index
	closers []io.Closer
	logFile *os.File
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	if a.index != nil {
		_ = a.index.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// setup loads config, logging, the index and the model. The index and model
// are built once and shared read-only by every question.
func setup(ctx context.Context, cfgPath string, interactive bool) (*app, error) {
	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, cfgPath, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{}
	log, err := newLogger(cfg.Log, interactive, a)
	if err != nil {
		return nil, err
	}
	log.WithField("config", cfgPath).Info("starting mmrag")

	emb, err := loader.NewEmbedder(ctx, cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("embedder init failed: %w", err)
	}
	if c, ok := emb.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	a.index, err = loader.Load(ctx, cfg, emb, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	key, err := cfg.GoogleAPIKey()
	if err != nil {
		a.close()
		return nil, err
	}
	model, err := gemini.New(ctx, key, cfg.LLM.Model, cfg.LLM.Temperature)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("gemini init failed: %w", err)
	}
	a.closers = append(a.closers, model)

	a.svc = service.NewRAGService(a.index.Retriever, model, log.WithField("component", "service"))
	return a, nil
}

// newLogger writes to the configured file; the terminal belongs to the TUI.
// One-shot commands log to stderr when no file is configured.
func newLogger(cfg config.LogConfig, interactive bool, a *app) (*logrus.Logger, error) {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})

	switch {
	case cfg.File != "":
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.logFile = f
		log.SetOutput(f)
	case interactive:
		log.SetOutput(io.Discard)
	default:
		log.SetOutput(os.Stderr)
	}
	return log, nil
}
