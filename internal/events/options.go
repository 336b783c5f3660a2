package events

type ProducerOptions func(e *EventProducer)

func WithOutputTopic(topic string) ProducerOptions {
	return func(e *EventProducer) {
		e.topic = topic
	}
}

// WithSource sets the cloudevents source attribute.
func WithSource(source string) ProducerOptions {
	return func(e *EventProducer) {
		e.source = source
	}
}
