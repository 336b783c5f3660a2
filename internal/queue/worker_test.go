package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("worker", func() {
	var (
		m      *miniredis.Miniredis
		client *Client
		opts   WorkerOptions
	)

	start := func(handler Handler) (context.CancelFunc, chan error) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		w := NewWorker(client, handler, opts)
		go func() {
			done <- w.Run(ctx)
		}()
		return cancel, done
	}

	counts := func() Counts {
		c, err := client.Counts(context.TODO())
		Expect(err).To(BeNil())
		return c
	}

	BeforeEach(func() {
		var err error
		m, err = miniredis.Run()
		Expect(err).To(BeNil())
		client = NewClient(Options{Address: m.Addr(), Queue: "docs"})
		opts = WorkerOptions{DrainDelay: time.Second, StalledInterval: time.Hour}
	})

	AfterEach(func() {
		_ = client.Close()
		m.Close()
	})

	Context("processing", func() {
		It("processes jobs in order with a single slot", func() {
			for range 3 {
				_, err := client.Enqueue(context.TODO(), "process", nil, JobOpts{})
				Expect(err).To(BeNil())
			}

			var mu sync.Mutex
			var seen []string
			tokens := map[string]struct{}{}
			cancel, done := start(func(ctx context.Context, job *Job, token string) error {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, job.ID)
				tokens[token] = struct{}{}
				return nil
			})
			defer cancel()

			Eventually(counts).WithTimeout(5 * time.Second).Should(Equal(Counts{Completed: 3}))

			mu.Lock()
			Expect(seen).To(Equal([]string{"1", "2", "3"}))
			Expect(tokens).To(HaveLen(3))
			mu.Unlock()

			job, err := client.GetJob(context.TODO(), "2")
			Expect(err).To(BeNil())
			Expect(job.AttemptsMade).To(Equal(1))
			Expect(job.ProcessedOn.IsZero()).To(BeFalse())
			Expect(job.FinishedOn.IsZero()).To(BeFalse())
			Expect(m.Exists("bull:docs:2:lock")).To(BeFalse())

			cancel()
			Eventually(done).WithTimeout(5 * time.Second).Should(Receive(BeNil()))
		})

		It("picks up jobs enqueued while waiting", func() {
			processed := make(chan string, 1)
			cancel, _ := start(func(ctx context.Context, job *Job, token string) error {
				processed <- job.ID
				return nil
			})
			defer cancel()

			time.Sleep(100 * time.Millisecond)
			_, err := client.Enqueue(context.TODO(), "process", nil, JobOpts{})
			Expect(err).To(BeNil())

			Eventually(processed).WithTimeout(5 * time.Second).Should(Receive(Equal("1")))
		})

		It("records the failure reason", func() {
			_, err := client.Enqueue(context.TODO(), "process", nil, JobOpts{})
			Expect(err).To(BeNil())

			cancel, _ := start(func(ctx context.Context, job *Job, token string) error {
				return errors.New("input file missing")
			})
			defer cancel()

			Eventually(counts).WithTimeout(5 * time.Second).Should(Equal(Counts{Failed: 1}))
			job, err := client.GetJob(context.TODO(), "1")
			Expect(err).To(BeNil())
			Expect(job.FailedReason).To(Equal("input file missing"))
			Expect(job.AttemptsMade).To(Equal(1))
		})

		It("retries until attempts are used up", func() {
			_, err := client.Enqueue(context.TODO(), "process", nil, JobOpts{Attempts: 3})
			Expect(err).To(BeNil())

			var calls atomic.Int32
			cancel, _ := start(func(ctx context.Context, job *Job, token string) error {
				calls.Add(1)
				return errors.New("flaky")
			})
			defer cancel()

			Eventually(counts).WithTimeout(5 * time.Second).Should(Equal(Counts{Failed: 1}))
			Expect(calls.Load()).To(Equal(int32(3)))

			job, err := client.GetJob(context.TODO(), "1")
			Expect(err).To(BeNil())
			Expect(job.AttemptsMade).To(Equal(3))
		})

		It("completes a retried job that succeeds later", func() {
			_, err := client.Enqueue(context.TODO(), "process", nil, JobOpts{Attempts: 2})
			Expect(err).To(BeNil())

			cancel, _ := start(func(ctx context.Context, job *Job, token string) error {
				if job.AttemptsMade == 0 {
					return errors.New("first try")
				}
				return nil
			})
			defer cancel()

			Eventually(counts).WithTimeout(5 * time.Second).Should(Equal(Counts{Completed: 1}))
		})

		It("turns a panic into a failure and keeps going", func() {
			for range 2 {
				_, err := client.Enqueue(context.TODO(), "process", nil, JobOpts{})
				Expect(err).To(BeNil())
			}

			cancel, _ := start(func(ctx context.Context, job *Job, token string) error {
				if job.ID == "1" {
					panic("corrupt document")
				}
				return nil
			})
			defer cancel()

			Eventually(counts).WithTimeout(5 * time.Second).Should(Equal(Counts{Completed: 1, Failed: 1}))
			job, err := client.GetJob(context.TODO(), "1")
			Expect(err).To(BeNil())
			Expect(job.FailedReason).To(ContainSubstring("corrupt document"))
		})

		It("drops jobs whose data is gone", func() {
			m.Lpush("bull:docs:wait", "42")

			var called atomic.Bool
			cancel, _ := start(func(ctx context.Context, job *Job, token string) error {
				called.Store(true)
				return nil
			})
			defer cancel()

			Eventually(func() bool {
				return m.Exists("bull:docs:active") || m.Exists("bull:docs:wait")
			}).WithTimeout(5 * time.Second).Should(BeFalse())
			Expect(m.Exists("bull:docs:42:lock")).To(BeFalse())
			Expect(called.Load()).To(BeFalse())
		})

		It("runs up to Concurrency handlers at once", func() {
			opts.Concurrency = 2
			for range 4 {
				_, err := client.Enqueue(context.TODO(), "process", nil, JobOpts{})
				Expect(err).To(BeNil())
			}

			var running, peak atomic.Int32
			cancel, _ := start(func(ctx context.Context, job *Job, token string) error {
				n := running.Add(1)
				defer running.Add(-1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(200 * time.Millisecond)
				return nil
			})
			defer cancel()

			Eventually(counts).WithTimeout(5 * time.Second).Should(Equal(Counts{Completed: 4}))
			Expect(peak.Load()).To(Equal(int32(2)))
		})
	})

	Context("shutdown", func() {
		It("returns promptly when idle", func() {
			cancel, done := start(func(ctx context.Context, job *Job, token string) error { return nil })

			time.Sleep(50 * time.Millisecond)
			cancel()
			Eventually(done).WithTimeout(3 * time.Second).Should(Receive(BeNil()))
		})

		It("waits for the in-flight job", func() {
			_, err := client.Enqueue(context.TODO(), "process", nil, JobOpts{})
			Expect(err).To(BeNil())

			started := make(chan struct{})
			release := make(chan struct{})
			var ctxErr atomic.Value
			cancel, done := start(func(ctx context.Context, job *Job, token string) error {
				close(started)
				<-release
				ctxErr.Store(ctx.Err() == nil)
				return nil
			})

			Eventually(started).WithTimeout(5 * time.Second).Should(BeClosed())
			cancel()
			Consistently(done, 300*time.Millisecond).ShouldNot(Receive())

			close(release)
			Eventually(done).WithTimeout(3 * time.Second).Should(Receive(BeNil()))
			Expect(ctxErr.Load()).To(Equal(true))
			Expect(counts()).To(Equal(Counts{Completed: 1}))
		})

		It("does not take new jobs after cancellation", func() {
			cancel, done := start(func(ctx context.Context, job *Job, token string) error { return nil })
			cancel()
			Eventually(done).WithTimeout(3 * time.Second).Should(Receive(BeNil()))

			_, err := client.Enqueue(context.TODO(), "process", nil, JobOpts{})
			Expect(err).To(BeNil())
			Consistently(counts, 200*time.Millisecond).Should(Equal(Counts{Wait: 1}))
		})

		It("returns a job that arrives while draining to wait", func() {
			opts.DrainDelay = 3 * time.Second

			var calls atomic.Int32
			cancel, done := start(func(ctx context.Context, job *Job, token string) error {
				calls.Add(1)
				return nil
			})

			time.Sleep(200 * time.Millisecond)
			cancel()
			time.Sleep(100 * time.Millisecond)
			_, err := client.Enqueue(context.TODO(), "process", nil, JobOpts{})
			Expect(err).To(BeNil())

			Eventually(done).WithTimeout(5 * time.Second).Should(Receive(BeNil()))
			Expect(calls.Load()).To(Equal(int32(0)))
			Expect(counts()).To(Equal(Counts{Wait: 1}))
			Expect(m.Exists("bull:docs:1:lock")).To(BeFalse())
			Expect(m.HGet("bull:docs:1", "processedOn")).To(BeEmpty())
		})

		It("fails to start without a broker", func() {
			m.Close()
			err := NewWorker(client, nil, opts).Run(context.TODO())
			Expect(err).ToNot(BeNil())
		})

		It("closes more than once", func() {
			w := NewWorker(client, nil, opts)
			Expect(w.Close()).To(Succeed())
			Expect(w.Close()).To(Succeed())
		})
	})

	Context("stalled jobs", func() {
		var w *Worker

		activate := func() string {
			id, err := client.Enqueue(context.TODO(), "process", nil, JobOpts{})
			Expect(err).To(BeNil())
			Expect(client.rdb.LMove(context.TODO(), "bull:docs:wait", "bull:docs:active", "RIGHT", "LEFT").Err()).To(Succeed())
			return id
		}

		BeforeEach(func() {
			opts.MaxStalledCount = 1
			w = NewWorker(client, nil, opts)
		})

		It("marks unlocked active jobs first and recovers them on the next pass", func() {
			id := activate()

			w.checkStalled(context.TODO())
			Expect(m.IsMember("bull:docs:stalled", id)).To(BeTrue())
			Expect(counts()).To(Equal(Counts{Active: 1}))

			w.checkStalled(context.TODO())
			Expect(counts()).To(Equal(Counts{Wait: 1}))
			Expect(m.HGet("bull:docs:"+id, "stalledCounter")).To(Equal("1"))
		})

		It("fails jobs that stall more than allowed", func() {
			id := activate()
			m.HSet("bull:docs:"+id, "stalledCounter", "1")

			w.checkStalled(context.TODO())
			w.checkStalled(context.TODO())

			Expect(counts()).To(Equal(Counts{Failed: 1}))
			Expect(m.HGet("bull:docs:"+id, "failedReason")).To(Equal(StalledReason))
		})

		It("leaves locked jobs alone", func() {
			id := activate()
			Expect(m.Set("bull:docs:"+id+":lock", "token")).To(Succeed())

			w.checkStalled(context.TODO())
			w.checkStalled(context.TODO())

			Expect(counts()).To(Equal(Counts{Active: 1}))
			Expect(m.Exists("bull:docs:stalled")).To(BeFalse())
		})

		It("does not recover a job locked between passes", func() {
			id := activate()

			w.checkStalled(context.TODO())
			Expect(m.Set("bull:docs:"+id+":lock", "token")).To(Succeed())
			w.checkStalled(context.TODO())

			Expect(counts()).To(Equal(Counts{Active: 1}))
		})

		It("hands recovered jobs back to a running worker", func() {
			activate()
			opts.StalledInterval = 100 * time.Millisecond

			processed := make(chan string, 1)
			cancel, _ := start(func(ctx context.Context, job *Job, token string) error {
				processed <- job.ID
				return nil
			})
			defer cancel()

			Eventually(processed).WithTimeout(5 * time.Second).Should(Receive(Equal("1")))
			Eventually(counts).WithTimeout(5 * time.Second).Should(Equal(Counts{Completed: 1}))
		})
	})
})
