package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kubev2v/doc-processor/internal/queue"
)

const collectTimeout = 2 * time.Second

// QueueCounter reports how many jobs sit in each state of a queue.
type QueueCounter interface {
	Counts(ctx context.Context) (queue.Counts, error)
}

type queueStatsCollector struct {
	counter QueueCounter
	jobs    *prometheus.Desc
}

// NewQueueCollector exposes the broker side job counts, read on every scrape.
func NewQueueCollector(counter QueueCounter, queueName string) prometheus.Collector {
	return &queueStatsCollector{
		counter: counter,
		jobs: prometheus.NewDesc(
			fmt.Sprintf("%s_queue_jobs", docProcessor),
			"Number of jobs in the queue by state.",
			[]string{"state"},
			prometheus.Labels{"queue": queueName},
		),
	}
}

func (c *queueStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobs
}

func (c *queueStatsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	counts, err := c.counter.Counts(ctx)
	if err != nil {
		zap.S().Named("queue_collector").Errorw("failed to collect queue statistics", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.GaugeValue, float64(counts.Wait), "wait")
	ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.GaugeValue, float64(counts.Active), "active")
	ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.GaugeValue, float64(counts.Completed), "completed")
	ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.GaugeValue, float64(counts.Failed), "failed")
}
