package uplink

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"backend-fieldtrack/internal/ingest"

	"github.com/rabbitmq/amqp091-go"
)

const pointsQueue = "fieldtrack.points"

// RabbitPublisher delivers point batches to the durable uplink queue.
type RabbitPublisher struct {
	conn *amqp091.Connection
	ch   *amqp091.Channel
}

func NewRabbitPublisher(url string) (*RabbitPublisher, error) {
	conn, ch, err := dialQueue(url)
	if err != nil {
		return nil, err
	}
	return &RabbitPublisher{conn: conn, ch: ch}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, batch []ingest.RawPoint) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, "", pointsQueue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         body,
	})
}

func (p *RabbitPublisher) Close() error {
	return errors.Join(p.ch.Close(), p.conn.Close())
}

// Ingester is the server-side sink consumed batches are fed into.
type Ingester interface {
	IngestBatch(ctx context.Context, raws []ingest.RawPoint) ([]ingest.Result, error)
}

// Consumer drains the uplink queue into the ingest service. Batches ack
// only after ingestion succeeds; failures requeue so nothing is lost.
type Consumer struct {
	conn     *amqp091.Connection
	ch       *amqp091.Channel
	ingester Ingester
	logger   *slog.Logger
}

func NewRabbitConsumer(url string, ing Ingester, logger *slog.Logger) (*Consumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, ch, err := dialQueue(url)
	if err != nil {
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, ingester: ing, logger: logger}, nil
}

func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(pointsQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return errors.New("uplink channel closed")
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg amqp091.Delivery) {
	var batch []ingest.RawPoint
	if err := json.Unmarshal(msg.Body, &batch); err != nil {
		// malformed payload can never succeed; drop it
		c.logger.Error("dropping malformed uplink batch", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	if _, err := c.ingester.IngestBatch(ctx, batch); err != nil {
		c.logger.Warn("uplink batch failed, requeueing", "points", len(batch), "error", err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func (c *Consumer) Close() error {
	return errors.Join(c.ch.Close(), c.conn.Close())
}

func dialQueue(url string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, errors.Join(conn.Close(), err)
	}
	if _, err := ch.QueueDeclare(pointsQueue, true, false, false, false, nil); err != nil {
		return nil, nil, errors.Join(conn.Close(), err)
	}
	return conn, ch, nil
}
