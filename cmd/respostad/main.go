// Command respostad runs the proposal workflow service: the HTTP API
// plus the queue workers that drive workflows to ready, against the
// store backend named in the configuration.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/petrijr/resposta"
	"github.com/petrijr/resposta/internal/config"
	"github.com/petrijr/resposta/internal/httpapi"
	"github.com/petrijr/resposta/internal/knowledge"
	"github.com/petrijr/resposta/internal/taskqueue"
	"github.com/petrijr/resposta/pkg/worker"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "respostad",
	Short: "Proposal workflow service",
	Long: `respostad serves the proposal workflow API and runs the workers
that process submitted RFP documents into rendered proposal drafts.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the workflow workers",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the respostad version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default searches ./config.yaml and ./config/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// workerGroup is the lifecycle shared by LocalRunner and WorkerBundle.
type workerGroup interface {
	StartWorkers(ctx context.Context, concurrency int) error
	Stop()
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	metrics := &resposta.BasicMetrics{}

	source, writer, closeSource, err := buildKnowledge(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	b := resposta.NewBuilder().
		WithKnowledge(source).
		WithObserver(resposta.NewCompositeObserver(resposta.NewLoggingObserver(logger), metrics)).
		WithTopK(cfg.Knowledge.TopK)

	switch cfg.LLM.Provider {
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return errors.New("ANTHROPIC_API_KEY must be set when llm.provider is anthropic")
		}
		b = b.WithAnthropic(key, cfg.LLM.Model)
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return errors.New("OPENAI_API_KEY must be set when llm.provider is openai")
		}
		b = b.WithOpenAI(key, cfg.LLM.Model)
	}

	group, eng, closeStore, err := buildEngine(b, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Sweep interrupted workflows before any worker can legitimately be
	// mid-processing.
	recovered, err := eng.RecoverStuckWorkflows(ctx)
	if err != nil {
		return fmt.Errorf("recover stuck workflows: %w", err)
	}
	if recovered > 0 {
		logger.Warn("recovered interrupted workflows", slog.Int("count", recovered))
	}

	// A durable store paired with the in-process queue loses its tasks on
	// restart; the created records are the source of truth to rebuild
	// them from. Harmless when the store is empty or fresh.
	if runner, ok := group.(*resposta.LocalRunner); ok {
		requeued, err := requeueCreated(ctx, runner)
		if err != nil {
			return fmt.Errorf("requeue created workflows: %w", err)
		}
		if requeued > 0 {
			logger.Info("requeued unprocessed workflows", slog.Int("count", requeued))
		}
	}

	if err := group.StartWorkers(ctx, cfg.Worker.Concurrency); err != nil {
		return err
	}
	defer group.Stop()

	srv := httpapi.NewServer(httpapi.Config{
		Engine:    eng,
		Knowledge: source,
		Writer:    writer,
		Metrics:   metrics,
		Logger:    logger,
	})
	e := srv.Routes()
	e.Use(middleware.Logger())

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			slog.String("addr", cfg.Server.Addr),
			slog.String("store", cfg.Store.Backend),
			slog.String("knowledge", cfg.Knowledge.Backend),
			slog.Int("workers", cfg.Worker.Concurrency))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.String("error", err.Error()))
		}
	}
	return nil
}

// buildKnowledge assembles the retrieval backend. The returned close
// func is a no-op for the in-memory source.
func buildKnowledge(ctx context.Context, cfg *config.Config) (resposta.KnowledgeSource, resposta.KnowledgeWriter, func(), error) {
	switch cfg.Knowledge.Backend {
	case "pgvector":
		embedder := knowledge.NewOllamaEmbedder(cfg.Knowledge.OllamaURL, cfg.Knowledge.OllamaModel)
		source, err := knowledge.NewPgvectorSource(ctx, cfg.Knowledge.PostgresURL, embedder)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect pgvector source: %w", err)
		}
		return source, source, source.Close, nil
	default:
		source := knowledge.NewMemorySource()
		return source, source, func() {}, nil
	}
}

// buildEngine finishes the builder for the configured store backend.
// SQLite and Redis get durable queues via a WorkerBundle; memory and
// postgres run on the in-process queue via a LocalRunner.
func buildEngine(b *resposta.Builder, cfg *config.Config) (workerGroup, resposta.Engine, func(), error) {
	workerCfg := worker.Config{
		MaxAttempts: cfg.Worker.MaxAttempts,
		Backoff:     cfg.Worker.Backoff,
	}

	switch cfg.Store.Backend {
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.Store.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite database: %w", err)
		}
		bundle, err := b.WithSQLite(db).WithArtifacts(afero.NewOsFs(), cfg.Artifacts.Dir).BuildBundle(workerCfg)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return bundle, bundle.Engine, func() { _ = db.Close() }, nil

	case "postgres":
		db, err := sql.Open("pgx", cfg.Store.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres database: %w", err)
		}
		runner, err := b.WithPostgres(db).WithArtifacts(afero.NewOsFs(), cfg.Artifacts.Dir).BuildLocalRunner()
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return runner, runner.Engine, func() { _ = db.Close() }, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		bundle, err := b.WithRedis(client).WithArtifacts(afero.NewOsFs(), cfg.Artifacts.Dir).BuildBundle(workerCfg)
		if err != nil {
			client.Close()
			return nil, nil, nil, err
		}
		return bundle, bundle.Engine, func() { _ = client.Close() }, nil

	default:
		runner, err := b.BuildLocalRunner()
		if err != nil {
			return nil, nil, nil, err
		}
		return runner, runner.Engine, func() {}, nil
	}
}

// requeueCreated re-seeds the in-process queue with workflows still in
// created, so a restart with a durable store picks them back up.
func requeueCreated(ctx context.Context, runner *resposta.LocalRunner) (int, error) {
	created, err := runner.Engine.ListWorkflows(ctx, resposta.WorkflowListOptions{State: resposta.StateCreated})
	if err != nil {
		return 0, err
	}
	for i, wf := range created {
		task := taskqueue.Task{ID: uuid.NewString(), WorkflowID: wf.ID}
		if err := runner.Queue.Enqueue(ctx, task); err != nil {
			return i, err
		}
	}
	return len(created), nil
}
