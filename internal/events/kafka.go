package events

import (
	"context"

	"github.com/IBM/sarama"
	jsoniter "github.com/json-iterator/go"

	"github.com/enchantedlib/lending-service/pkg/circuit_breaker"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// KafkaSink publishes events to a Kafka topic. Produce calls go through a
// circuit breaker so a down broker does not stall the lending flow.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	cb       circuit_breaker.CircuitBreaker
}

func NewKafkaSink(producer sarama.SyncProducer, topic string, cb circuit_breaker.CircuitBreaker) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		topic:    topic,
		cb:       cb,
	}
}

func (s *KafkaSink) Notify(_ context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.cb.Call(func() error {
		_, _, err := s.producer.SendMessage(&sarama.ProducerMessage{
			Topic: s.topic,
			Key:   sarama.StringEncoder(ev.Type),
			Value: sarama.ByteEncoder(value),
		})
		return err
	})
}
