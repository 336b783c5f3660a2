package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	JobStartedKind   string = "doc-processor.job.started"
	JobCompletedKind string = "doc-processor.job.completed"
	JobFailedKind    string = "doc-processor.job.failed"
	defaultTopic     string = "doc-processor.events"
	defaultSource    string = "doc-processor"

	closeTimeout = 5 * time.Second
)

var ErrProducerClosed = errors.New("event producer closed")

// Writer is the interface to be implemented by the underlying writer.
type Writer interface {
	Write(ctx context.Context, topic string, e cloudevents.Event) error
	Close(ctx context.Context) error
}

// EventProducer buffers events so callers never wait on the writer.
type EventProducer struct {
	buffer    *buffer
	notify    chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	closeErr  error
	writer    Writer
	topic     string
	source    string
	log       *zap.SugaredLogger
}

func NewEventProducer(w Writer, opts ...ProducerOptions) *EventProducer {
	ep := &EventProducer{
		buffer:  newBuffer(),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		writer:  w,
		topic:   defaultTopic,
		source:  defaultSource,
		log:     zap.S().Named("event_producer"),
	}

	for _, o := range opts {
		o(ep)
	}

	go ep.run()
	return ep
}

func (ep *EventProducer) Write(ctx context.Context, kind string, body io.Reader) error {
	select {
	case <-ep.done:
		return ErrProducerClosed
	default:
	}

	d, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	ep.buffer.PushBack(&message{Kind: kind, Data: d})

	select {
	case ep.notify <- struct{}{}:
	default:
		// the consumer is already awake
	}

	return nil
}

// WriteJobEvent encodes ev as the JSON payload of a kind event.
func (ep *EventProducer) WriteJobEvent(ctx context.Context, kind string, ev JobEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ep.Write(ctx, kind, bytes.NewReader(data))
}

// Close sends what is still buffered and closes the writer.
func (ep *EventProducer) Close() error {
	ep.closeOnce.Do(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()

		close(ep.done)

		g, ctx := errgroup.WithContext(closeCtx)
		g.Go(func() error {
			select {
			case <-ep.stopped:
			case <-ctx.Done():
				return ctx.Err()
			}
			return ep.writer.Close(ctx)
		})
		if err := g.Wait(); err != nil {
			ep.log.Errorw("event producer closed with error", "error", err)
			ep.closeErr = err
			return
		}

		ep.log.Info("event producer closed")
	})
	return ep.closeErr
}

func (ep *EventProducer) run() {
	defer close(ep.stopped)

	for {
		for msg := ep.buffer.Pop(); msg != nil; msg = ep.buffer.Pop() {
			ep.send(msg)
		}

		select {
		case <-ep.notify:
		case <-ep.done:
			for msg := ep.buffer.Pop(); msg != nil; msg = ep.buffer.Pop() {
				ep.send(msg)
			}
			return
		}
	}
}

func (ep *EventProducer) send(msg *message) {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource(ep.source)
	e.SetType(msg.Kind)
	e.SetTime(msg.Time)
	_ = e.SetData(*cloudevents.StringOfApplicationJSON(), msg.Data)

	if err := ep.writer.Write(context.TODO(), ep.topic, e); err != nil {
		ep.log.Errorw("failed to send event", "error", err, "type", msg.Kind)
	}
}
