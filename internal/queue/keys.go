package queue

import "strings"

const DefaultPrefix = "bull"

// keys follows the BullMQ layout so jobs can be produced by any BullMQ
// compatible client.
type keys struct {
	base string
}

func newKeys(prefix, queue string) keys {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return keys{base: strings.Join([]string{prefix, queue}, ":") + ":"}
}

func (k keys) id() string        { return k.base + "id" }
func (k keys) wait() string      { return k.base + "wait" }
func (k keys) active() string    { return k.base + "active" }
func (k keys) completed() string { return k.base + "completed" }
func (k keys) failed() string    { return k.base + "failed" }
func (k keys) stalled() string   { return k.base + "stalled" }

func (k keys) job(id string) string  { return k.base + id }
func (k keys) lock(id string) string { return k.base + id + ":lock" }
