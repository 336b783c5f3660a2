package queue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// JobOpts are the producer side options stored with every job.
type JobOpts struct {
	Attempts int `json:"attempts,omitempty"`
}

func (o JobOpts) attempts() int {
	if o.Attempts < 1 {
		return 1
	}
	return o.Attempts
}

type Job struct {
	ID             string
	Name           string
	Data           json.RawMessage
	Opts           JobOpts
	Timestamp      time.Time
	AttemptsMade   int
	StalledCounter int
	ProcessedOn    time.Time
	FinishedOn     time.Time
	FailedReason   string
}

func (j *Job) String() string {
	return fmt.Sprintf("%s(%s)", j.Name, j.ID)
}

// jobFromHash builds a Job out of the fields of its redis hash.
func jobFromHash(id string, fields map[string]string) (*Job, error) {
	job := &Job{
		ID:           id,
		Name:         fields["name"],
		FailedReason: fields["failedReason"],
	}

	if data, ok := fields["data"]; ok && data != "" {
		job.Data = json.RawMessage(data)
	}
	if opts, ok := fields["opts"]; ok && opts != "" {
		if err := json.Unmarshal([]byte(opts), &job.Opts); err != nil {
			return nil, fmt.Errorf("job %s has malformed opts: %w", id, err)
		}
	}

	var err error
	if job.AttemptsMade, err = intField(fields, "attemptsMade"); err != nil {
		return nil, err
	}
	if job.StalledCounter, err = intField(fields, "stalledCounter"); err != nil {
		return nil, err
	}
	if job.Timestamp, err = timeField(fields, "timestamp"); err != nil {
		return nil, err
	}
	if job.ProcessedOn, err = timeField(fields, "processedOn"); err != nil {
		return nil, err
	}
	if job.FinishedOn, err = timeField(fields, "finishedOn"); err != nil {
		return nil, err
	}

	return job, nil
}

func intField(fields map[string]string, name string) (int, error) {
	v, ok := fields[name]
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", name, err)
	}
	return n, nil
}

// timeField parses a unix timestamp in milliseconds.
func timeField(fields map[string]string, name string) (time.Time, error) {
	v, ok := fields[name]
	if !ok || v == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %s: %w", name, err)
	}
	return time.UnixMilli(ms), nil
}
