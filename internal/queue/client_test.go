package queue

import (
	"context"
	"encoding/json"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("client", func() {
	var (
		m      *miniredis.Miniredis
		client *Client
	)

	BeforeEach(func() {
		var err error
		m, err = miniredis.Run()
		Expect(err).To(BeNil())
		client = NewClient(Options{Address: m.Addr(), Queue: "docs"})
	})

	AfterEach(func() {
		_ = client.Close()
		m.Close()
	})

	It("stores jobs with the bullmq layout", func() {
		id, err := client.Enqueue(context.TODO(), "process", map[string]string{"inputFilePath": "/in.pdf"}, JobOpts{Attempts: 2})
		Expect(err).To(BeNil())
		Expect(id).To(Equal("1"))

		Expect(m.Get("bull:docs:id")).To(Equal("1"))
		Expect(m.HGet("bull:docs:1", "name")).To(Equal("process"))
		Expect(m.HGet("bull:docs:1", "opts")).To(MatchJSON(`{"attempts":2}`))
		list, err := m.List("bull:docs:wait")
		Expect(err).To(BeNil())
		Expect(list).To(Equal([]string{"1"}))
	})

	It("pushes new jobs behind older ones", func() {
		for range 3 {
			_, err := client.Enqueue(context.TODO(), "process", nil, JobOpts{})
			Expect(err).To(BeNil())
		}

		// workers take from the right
		list, err := m.List("bull:docs:wait")
		Expect(err).To(BeNil())
		Expect(list).To(Equal([]string{"3", "2", "1"}))
	})

	It("reads jobs back", func() {
		id, err := client.Enqueue(context.TODO(), "process", map[string]string{"a": "b"}, JobOpts{})
		Expect(err).To(BeNil())

		job, err := client.GetJob(context.TODO(), id)
		Expect(err).To(BeNil())
		Expect(job.Name).To(Equal("process"))
		Expect(job.Data).To(MatchJSON(`{"a":"b"}`))
		Expect(job.Opts.attempts()).To(Equal(1))
		Expect(job.AttemptsMade).To(Equal(0))
		Expect(job.Timestamp.IsZero()).To(BeFalse())

		missing, err := client.GetJob(context.TODO(), "404")
		Expect(err).To(BeNil())
		Expect(missing).To(BeNil())
	})

	It("counts jobs per state", func() {
		_, err := client.Enqueue(context.TODO(), "process", nil, JobOpts{})
		Expect(err).To(BeNil())
		_, err = m.ZAdd("bull:docs:completed", 1, "7")
		Expect(err).To(BeNil())

		counts, err := client.Counts(context.TODO())
		Expect(err).To(BeNil())
		Expect(counts).To(Equal(Counts{Wait: 1, Completed: 1}))
	})

	It("uses a custom prefix", func() {
		other := NewClient(Options{Address: m.Addr(), Prefix: "jobs", Queue: "docs"})
		defer other.Close()

		_, err := other.Enqueue(context.TODO(), "process", nil, JobOpts{})
		Expect(err).To(BeNil())
		Expect(m.Exists("jobs:docs:1")).To(BeTrue())
	})

	It("can be closed twice", func() {
		Expect(client.Close()).To(Succeed())
		Expect(client.Close()).To(Succeed())
	})

	It("reports an unreachable broker", func() {
		m.Close()
		Expect(client.Ping(context.TODO())).ToNot(Succeed())
	})
})

var _ = Describe("job parsing", func() {
	It("rejects malformed numbers", func() {
		_, err := jobFromHash("1", map[string]string{"attemptsMade": "x"})
		Expect(err).ToNot(BeNil())
	})

	It("rejects malformed opts", func() {
		_, err := jobFromHash("1", map[string]string{"opts": "{"})
		Expect(err).ToNot(BeNil())
	})

	It("keeps raw data", func() {
		job, err := jobFromHash("5", map[string]string{"name": "n", "data": `{"x":1}`, "timestamp": "1700000000000"})
		Expect(err).To(BeNil())
		Expect(json.Valid(job.Data)).To(BeTrue())
		Expect(job.Timestamp.UnixMilli()).To(Equal(int64(1700000000000)))
		Expect(job.String()).To(Equal("n(5)"))
	})
})
