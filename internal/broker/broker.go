package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/task"
)

// Exchange and queue topology. The retry queue has no consumer: messages sit
// there until the per-queue TTL expires, then dead-letter back onto the task
// routing key for redelivery.
const (
	ExchangeName = "transcription"

	TasksQueue = "transcription.tasks"
	RetryQueue = "transcription.retry"
	DLQQueue   = "transcription.dlq"

	TaskRoutingKey   = "transcription.task"
	RetryRoutingKey  = "transcription.retry"
	FailedRoutingKey = "transcription.failed"

	consumerTag = "scribe-worker"
)

// Handler processes one delivery body. The delivery is acked when the
// handler returns, whatever it did; retry and dead-lettering are the
// handler's responsibility, never the broker's requeue.
type Handler func(ctx context.Context, body []byte)

// Client is a RabbitMQ client that owns the transcription topology and
// reconnects with a fixed backoff until its context is canceled.
type Client struct {
	cfg    config.Broker
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel

	connected atomic.Bool
}

// New creates an unconnected client.
func New(cfg config.Broker, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{cfg: cfg, logger: logging.NewComponentLogger(logger, "broker")}
}

// Connected reports whether a live connection is currently held. Used by the
// health endpoint.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Connect dials the broker, opens a channel with prefetch 1, and declares
// the topology. Declaration is idempotent so reconnects redeclare safely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected.Load() {
		return nil
	}

	heartbeat := time.Duration(c.cfg.HeartbeatSeconds) * time.Second
	conn, err := amqp.DialConfig(c.cfg.URL, amqp.Config{Heartbeat: heartbeat})
	if err != nil {
		return fmt.Errorf("broker: dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("broker: open channel: %w", err)
	}
	if err := channel.Qos(1, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("broker: set prefetch: %w", err)
	}
	if err := declareTopology(channel, c.cfg.RetryDelayMS); err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.channel = channel
	c.connected.Store(true)
	c.logger.Info("connected", logging.String("exchange", ExchangeName))
	return nil
}

// Close shuts the connection down. Safe to call repeatedly.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected.Store(false)
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.channel = nil
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("broker: close: %w", err)
	}
	return nil
}

func declareTopology(channel *amqp.Channel, retryDelayMS int) error {
	if err := channel.ExchangeDeclare(ExchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("broker: declare exchange: %w", err)
	}

	// DLQ first, it is the dead-letter target of the tasks queue.
	if _, err := channel.QueueDeclare(DLQQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("broker: declare dlq: %w", err)
	}
	if err := channel.QueueBind(DLQQueue, FailedRoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("broker: bind dlq: %w", err)
	}

	if _, err := channel.QueueDeclare(RetryQueue, true, false, false, false, retryQueueArgs(retryDelayMS)); err != nil {
		return fmt.Errorf("broker: declare retry queue: %w", err)
	}
	if err := channel.QueueBind(RetryQueue, RetryRoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("broker: bind retry queue: %w", err)
	}

	if _, err := channel.QueueDeclare(TasksQueue, true, false, false, false, tasksQueueArgs()); err != nil {
		return fmt.Errorf("broker: declare tasks queue: %w", err)
	}
	if err := channel.QueueBind(TasksQueue, TaskRoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("broker: bind tasks queue: %w", err)
	}
	return nil
}

func retryQueueArgs(retryDelayMS int) amqp.Table {
	return amqp.Table{
		"x-message-ttl":             int32(retryDelayMS),
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": TaskRoutingKey,
	}
}

func tasksQueueArgs() amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": FailedRoutingKey,
	}
}

// PublishToRetry republishes a task onto the delay queue. The caller bumps
// retry_count before calling.
func (c *Client) PublishToRetry(ctx context.Context, t task.Task) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("broker: encode retry payload: %w", err)
	}
	if err := c.publish(ctx, RetryRoutingKey, body); err != nil {
		return err
	}
	c.logger.Info("task sent to retry queue",
		logging.String(logging.FieldTaskID, t.TaskID),
		logging.Int("retry_count", t.RetryCount))
	return nil
}

// PublishToDLQ stamps the task with the failure and publishes it to the
// dead-letter queue.
func (c *Client) PublishToDLQ(ctx context.Context, t task.Task, cause string) error {
	body, err := t.DLQPayload(cause)
	if err != nil {
		return fmt.Errorf("broker: encode dlq payload: %w", err)
	}
	if err := c.publish(ctx, FailedRoutingKey, body); err != nil {
		return err
	}
	c.logger.Warn("task sent to dlq",
		logging.String(logging.FieldTaskID, t.TaskID),
		logging.String("cause", cause))
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return errors.New("broker: not connected")
	}
	err := channel.PublishWithContext(ctx, ExchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("broker: publish %s: %w", routingKey, err)
	}
	return nil
}

// Run consumes the tasks queue until ctx is canceled, reconnecting with a
// fixed delay after every connection loss. It never gives up on its own.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	delay := time.Duration(c.cfg.ReconnectDelaySeconds) * time.Second
	if delay <= 0 {
		delay = 5 * time.Second
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.Connect(); err != nil {
			c.logger.Warn("connect failed, retrying",
				logging.Error(err),
				logging.Duration("delay", delay))
			if !sleepCtx(ctx, delay) {
				return nil
			}
			continue
		}
		if err := c.consumeOnce(ctx, handler); err != nil {
			c.logger.Warn("consume interrupted, reconnecting", logging.Error(err))
			c.teardown()
			if !sleepCtx(ctx, delay) {
				return nil
			}
			continue
		}
		return nil
	}
}

// consumeOnce consumes deliveries on the current channel until the context
// is canceled (returns nil) or the connection drops (returns the cause).
func (c *Client) consumeOnce(ctx context.Context, handler Handler) error {
	c.mu.Lock()
	channel := c.channel
	conn := c.conn
	c.mu.Unlock()
	if channel == nil {
		return errors.New("broker: not connected")
	}

	deliveries, err := channel.Consume(TasksQueue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("broker: start consume: %w", err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	c.logger.Info("consuming", logging.String("queue", TasksQueue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("broker: connection closed")
			}
			return fmt.Errorf("broker: connection lost: %w", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("broker: delivery channel closed")
			}
			dispatch(ctx, c.logger, d, handler)
		}
	}
}

// dispatch runs the handler and always acks. A panic is logged and the
// delivery is still acked; poisoned messages must reach the DLQ through the
// handler's own classification, never through broker redelivery.
//
// The handler runs on a context detached from cancellation: shutdown stops
// the delivery loop, but the task already in flight finishes its pipeline
// rather than being aborted mid-recognition.
func dispatch(ctx context.Context, logger *slog.Logger, d amqp.Delivery, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panic", logging.Any("panic", r))
		}
		if err := d.Ack(false); err != nil {
			logger.Error("ack failed", logging.Error(err))
		}
	}()
	handler(context.WithoutCancel(ctx), d.Body)
}

func (c *Client) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected.Store(false)
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.channel = nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
