// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// kafkaWriteTimeout bounds a single produce attempt so a broker outage can
// never stall a login.
const kafkaWriteTimeout = 2 * time.Second

// KafkaEmitter publishes events to the SIEM ingestion topic.
//
// Messages are keyed by account ID so all events for one account land on the
// same partition and replay in order.
type KafkaEmitter struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafkaEmitter creates an [Emitter] producing to the given brokers/topic.
func NewKafkaEmitter(brokers []string, topic string, logger *slog.Logger) *KafkaEmitter {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		WriteTimeout: kafkaWriteTimeout,
	}

	return &KafkaEmitter{writer: writer, logger: logger}
}

// Emit implements [Emitter]. Produce failures are logged, never propagated —
// the security transition already committed and must not be rolled back for
// a telemetry hiccup.
func (emitter *KafkaEmitter) Emit(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		emitter.logger.ErrorContext(ctx, "audit_kafka_marshal_failed", slog.Any("error", err))
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, kafkaWriteTimeout)
	defer cancel()

	err = emitter.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.AccountID),
		Value: payload,
	})
	if err != nil {
		emitter.logger.ErrorContext(ctx, "audit_kafka_write_failed",
			slog.String("event_type", string(event.Type)),
			slog.Any("error", err),
		)
	}
}

// Close flushes and closes the underlying writer.
func (emitter *KafkaEmitter) Close() error {
	return emitter.writer.Close()
}
