// Package service holds the account workflows that span the store, the
// token issuer and outbound mail, and the RabbitMQ mail publisher.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/flasky/internal/logger"
	"github.com/iliyamo/flasky/internal/mail"
	"github.com/iliyamo/flasky/internal/queue"
)

// QueuePublisher implements mail.Dispatcher by publishing every message to
// the durable mail queue, where the worker process picks it up. Publishing
// happens on a background goroutine; errors are logged and dropped.
type QueuePublisher struct {
	url     string
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewQueuePublisher(url string) *QueuePublisher {
	return &QueuePublisher{url: url, timeout: 10 * time.Second}
}

func (p *QueuePublisher) Send(ctx context.Context, m mail.Message) {
	ev := queue.NewMailRequestedEvent(m, time.Now())
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		_ = p.Publish(ctx, ev)
	}()
}

// Wait blocks until in-flight publishes finished.
func (p *QueuePublisher) Wait() { p.wg.Wait() }

// Publish sends ev to the mail queue as a persistent JSON message. Errors
// are logged and returned.
func (p *QueuePublisher) Publish(ctx context.Context, ev queue.MailRequestedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		logger.Errorf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.Errorf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue.MailQueueName, // name
		true,                // durable
		false,               // autoDelete
		false,               // exclusive
		false,               // noWait
		nil,                 // args
	); err != nil {
		logger.Errorf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.MailQueueName, false, false, pub); err != nil {
		logger.Errorf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
