package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kubev2v/doc-processor/internal/config"
	"github.com/kubev2v/doc-processor/internal/document"
	"github.com/kubev2v/doc-processor/internal/events"
	"github.com/kubev2v/doc-processor/internal/jobs"
	"github.com/kubev2v/doc-processor/internal/queue"
	"github.com/kubev2v/doc-processor/pkg/log"
	"github.com/kubev2v/doc-processor/pkg/metrics"
	"github.com/kubev2v/doc-processor/pkg/offload"
)

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Run the document processing worker",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		undo := log.Setup(cfg.Worker.LogLevel)
		defer undo()

		logger := zap.S().Named("doc_processor")
		logger.Infof("Starting document processor: %s", cfg)
		defer logger.Info("document processor stopped")

		return runWorker(context.Background(), cfg)
	},
}

// runWorker consumes the queue until SIGINT or SIGTERM arrives or parent is
// cancelled, then lets the in-flight job finish and closes everything it
// opened.
func runWorker(parent context.Context, cfg *config.Config) error {
	logger := zap.S().Named("doc_processor")

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	converter, err := document.NewConverter(cfg)
	if err != nil {
		logger.Errorw("creating converter", "error", err)
		return err
	}

	pool := offload.NewPool(cfg.Worker.PoolSize)
	defer pool.Close()

	client := queue.NewClient(queue.Options{
		Address:  cfg.RedisAddress(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Worker.QueuePrefix,
		Queue:    cfg.Worker.QueueName,
	})

	var handlerOpts []jobs.HandlerOption
	if cfg.Worker.Events {
		producer := events.NewEventProducer(&events.StdoutWriter{})
		defer producer.Close()
		handlerOpts = append(handlerOpts, jobs.WithEvents(producer))
	}

	handler := jobs.NewHandler(document.NewProcessor(converter), pool, handlerOpts...)

	worker := queue.NewWorker(client, handler.Process, queue.WorkerOptions{
		Concurrency:     cfg.Worker.Concurrency,
		LockDuration:    cfg.Worker.LockDuration,
		StalledInterval: cfg.Worker.StalledInterval,
		MaxStalledCount: cfg.Worker.MaxStalledCount,
		DrainDelay:      cfg.Worker.DrainDelay,
	})
	defer worker.Close()

	if cfg.Worker.MetricsAddress != "" {
		listener, err := net.Listen("tcp", cfg.Worker.MetricsAddress)
		if err != nil {
			logger.Errorw("creating metrics listener", "address", cfg.Worker.MetricsAddress, "error", err)
			return err
		}
		prometheus.MustRegister(metrics.NewQueueCollector(client, cfg.Worker.QueueName))

		go func() {
			if err := metrics.NewServer(listener, client).Run(ctx); err != nil {
				logger.Errorw("metrics server stopped", "error", err)
			}
		}()
	}

	if err := worker.Run(ctx); err != nil {
		logger.Errorw("worker stopped with error", "error", err)
		return err
	}

	return nil
}
