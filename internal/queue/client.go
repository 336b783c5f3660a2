package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Options struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	Queue    string
}

// Client talks to a single queue on the broker.
type Client struct {
	rdb       *redis.Client
	keys      keys
	queue     string
	closeOnce sync.Once
	closeErr  error
}

// Counts is a snapshot of the number of jobs in every state.
type Counts struct {
	Wait      int64
	Active    int64
	Completed int64
	Failed    int64
}

func NewClient(opts Options) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &Client{
		rdb:   rdb,
		keys:  newKeys(opts.Prefix, opts.Queue),
		queue: opts.Queue,
	}
}

func (c *Client) Queue() string {
	return c.queue
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach broker: %w", err)
	}
	return nil
}

// Enqueue adds a job at the tail of the wait list and returns its id.
func (c *Client) Enqueue(ctx context.Context, name string, data any, opts JobOpts) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode job data: %w", err)
	}
	rawOpts, err := json.Marshal(opts)
	if err != nil {
		return "", err
	}

	n, err := c.rdb.Incr(ctx, c.keys.id()).Result()
	if err != nil {
		return "", fmt.Errorf("failed to allocate job id: %w", err)
	}
	id := strconv.FormatInt(n, 10)

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.keys.job(id),
			"name", name,
			"data", string(payload),
			"opts", string(rawOpts),
			"timestamp", time.Now().UnixMilli(),
			"attemptsMade", 0,
		)
		pipe.LPush(ctx, c.keys.wait(), id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job %s: %w", id, err)
	}

	zap.S().Named("queue").Debugw("job enqueued", "queue", c.queue, "id", id, "name", name)

	return id, nil
}

// GetJob returns nil when the job does not exist.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	fields, err := c.rdb.HGetAll(ctx, c.keys.job(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return jobFromHash(id, fields)
}

func (c *Client) Counts(ctx context.Context) (Counts, error) {
	pipe := c.rdb.Pipeline()
	wait := pipe.LLen(ctx, c.keys.wait())
	active := pipe.LLen(ctx, c.keys.active())
	completed := pipe.ZCard(ctx, c.keys.completed())
	failed := pipe.ZCard(ctx, c.keys.failed())
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Counts{}, err
	}
	return Counts{
		Wait:      wait.Val(),
		Active:    active.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
	}, nil
}

// Close can be called more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rdb.Close()
	})
	return c.closeErr
}
