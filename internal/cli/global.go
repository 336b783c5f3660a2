package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kubev2v/doc-processor/internal/config"
	"github.com/kubev2v/doc-processor/internal/queue"
)

// GlobalOptions point the broker commands at a queue. Defaults come from
// the same environment variables the worker reads.
type GlobalOptions struct {
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	QueueName     string
	QueuePrefix   string
}

func DefaultGlobalOptions() GlobalOptions {
	o := GlobalOptions{
		RedisAddress: "localhost:6379",
		QueueName:    "doc-processor",
		QueuePrefix:  queue.DefaultPrefix,
	}
	if cfg, err := config.New(); err == nil {
		o.RedisAddress = cfg.RedisAddress()
		o.RedisPassword = cfg.Redis.Password
		o.RedisDB = cfg.Redis.DB
		o.QueueName = cfg.Worker.QueueName
		o.QueuePrefix = cfg.Worker.QueuePrefix
	}
	return o
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.RedisAddress, "redis-address", o.RedisAddress, "Address (host:port) of the redis broker")
	fs.IntVar(&o.RedisDB, "redis-db", o.RedisDB, "Redis database number")
	fs.StringVarP(&o.QueueName, "queue", "q", o.QueueName, "Name of the job queue")
	fs.StringVar(&o.QueuePrefix, "queue-prefix", o.QueuePrefix, "Key prefix of the job queue")
}

func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	return nil
}

func (o *GlobalOptions) Client() *queue.Client {
	return queue.NewClient(queue.Options{
		Address:  o.RedisAddress,
		Password: o.RedisPassword,
		DB:       o.RedisDB,
		Prefix:   o.QueuePrefix,
		Queue:    o.QueueName,
	})
}
