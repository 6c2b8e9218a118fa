package storage

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"resume-match-go/internal/config"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/tracing"
)

var rabbitTracer = otel.Tracer("resume-match-go/storage/rabbitmq")

// RabbitMQ carries upload events from the API to the indexer.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     *config.RabbitMQConfig
}

// NewRabbitMQ connects and declares the upload topology: one durable direct
// exchange, one durable queue, bound by the upload routing key.
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rabbitmq config is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		cfg.UploadExchange, "direct",
		true, false, false, false, nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.UploadExchange, err)
	}

	if _, err := channel.QueueDeclare(
		cfg.UploadQueue,
		true, false, false, false, nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", cfg.UploadQueue, err)
	}

	if err := channel.QueueBind(
		cfg.UploadQueue, cfg.UploadRoutingKey, cfg.UploadExchange, false, nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue %s: %w", cfg.UploadQueue, err)
	}

	logger.Info().
		Str("exchange", cfg.UploadExchange).
		Str("queue", cfg.UploadQueue).
		Msg("RabbitMQ topology declared")
	return &RabbitMQ{conn: conn, channel: channel, cfg: cfg}, nil
}

// amqpHeaderCarrier adapts AMQP message headers to the OTel propagation API
// so trace context crosses the broker.
type amqpHeaderCarrier amqp.Table

func (c amqpHeaderCarrier) Get(key string) string {
	if v, ok := c[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (c amqpHeaderCarrier) Set(key, value string) {
	c[key] = value
}

func (c amqpHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// PublishResumeUploaded emits one upload event. The message is persistent;
// losing it would strand a raw file in object storage with no indexing.
func (r *RabbitMQ) PublishResumeUploaded(ctx context.Context, msg *ResumeUploadedMessage) error {
	ctx, span := rabbitTracer.Start(ctx, "RabbitMQ.PublishResumeUploaded",
		trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	body, err := json.Marshal(msg)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return fmt.Errorf("marshal upload message: %w", err)
	}

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, amqpHeaderCarrier(headers))

	err = r.channel.PublishWithContext(ctx,
		r.cfg.UploadExchange, r.cfg.UploadRoutingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
			Body:         body,
		})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return fmt.Errorf("publish upload message: %w", err)
	}
	return nil
}

// UploadHandler processes one upload event. A returned error dead-letters
// the message instead of requeueing it, so a poisoned file cannot loop.
type UploadHandler func(ctx context.Context, msg *ResumeUploadedMessage) error

// ConsumeResumeUploaded pulls upload events until ctx is cancelled. Each
// delivery is handled in the consumer goroutine with manual acks.
func (r *RabbitMQ) ConsumeResumeUploaded(ctx context.Context, handler UploadHandler) error {
	if err := r.channel.Qos(r.cfg.PrefetchCount, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := r.channel.Consume(
		r.cfg.UploadQueue, "",
		false, false, false, false, nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming %s: %w", r.cfg.UploadQueue, err)
	}

	logger.Info().Str("queue", r.cfg.UploadQueue).Msg("consuming upload events")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", r.cfg.UploadQueue)
			}
			r.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (r *RabbitMQ) handleDelivery(ctx context.Context, delivery amqp.Delivery, handler UploadHandler) {
	msgCtx := otel.GetTextMapPropagator().Extract(ctx, amqpHeaderCarrier(delivery.Headers))
	msgCtx, span := rabbitTracer.Start(msgCtx, "RabbitMQ.HandleResumeUploaded",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var msg ResumeUploadedMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		logger.Error().Err(err).Msg("malformed upload message, discarding")
		_ = delivery.Nack(false, false)
		return
	}

	if err := handler(msgCtx, &msg); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		logger.Error().Err(err).
			Str("file_md5", msg.FileMD5).
			Str("file_name", msg.OriginalFileName).
			Msg("upload handler failed, discarding message")
		_ = delivery.Nack(false, false)
		return
	}

	if err := delivery.Ack(false); err != nil {
		logger.Error().Err(err).Str("file_md5", msg.FileMD5).Msg("failed to ack upload message")
	}
}

// Close tears down the channel and connection.
func (r *RabbitMQ) Close() error {
	var firstErr error
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
