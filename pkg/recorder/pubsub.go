package recorder

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/platinummonkey/quill/pkg/async"
	"github.com/platinummonkey/quill/pkg/contextkeys"
	"github.com/platinummonkey/quill/pkg/observability"
)

// ViewTopic carries ViewTask messages
const ViewTopic = "post.views"

const requestIDMetadata = "request_id"

// ErrQueueFull is reported when a view task is dropped for lack of capacity
var ErrQueueFull = errors.New("view recorder queue full")

// ViewTask asks for one view of a post to be recorded
type ViewTask struct {
	Slug     string `json:"slug"`
	ClientIP string `json:"client_ip"`
}

// NewPubSub creates the in-process pub/sub carrying view tasks
func NewPubSub(buffer int64, logger *observability.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: buffer},
		watermill.NewSlogLogger(logger.OrDefault().Slog()),
	)
}

// Dispatcher publishes view tasks without waiting for them to be recorded
type Dispatcher struct {
	pub     message.Publisher
	topic   string
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewDispatcher creates a dispatcher publishing on topic
func NewDispatcher(pub message.Publisher, topic string, logger *observability.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		pub:     pub,
		topic:   topic,
		logger:  logger.OrDefault().WithField("component", "view_dispatcher"),
		metrics: metrics,
	}
}

// Dispatch publishes a view task. Failures are logged and the view is lost.
func (d *Dispatcher) Dispatch(ctx context.Context, slug, clientIP string) {
	payload, err := json.Marshal(ViewTask{Slug: slug, ClientIP: clientIP})
	if err != nil {
		d.metrics.ViewTask(observability.OutcomeDropped)
		d.logger.WithError(err).Error("failed to encode view task")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if id := contextkeys.GetRequestID(ctx); id != "" {
		msg.Metadata.Set(requestIDMetadata, id)
	}
	if err := d.pub.Publish(d.topic, msg); err != nil {
		d.metrics.ViewTask(observability.OutcomeDropped)
		d.logger.WithError(err).WithField("slug", slug).Warn("failed to dispatch view")
		return
	}
	d.metrics.ViewTask(observability.OutcomeDispatched)
}

// Consumer feeds view tasks from the pub/sub into a worker pool
type Consumer struct {
	sub      message.Subscriber
	topic    string
	pool     *async.WorkerPool
	recorder *Recorder
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewConsumer creates a consumer of topic
func NewConsumer(sub message.Subscriber, topic string, pool *async.WorkerPool, rec *Recorder,
	logger *observability.Logger, metrics *observability.Metrics) *Consumer {
	return &Consumer{
		sub:      sub,
		topic:    topic,
		pool:     pool,
		recorder: rec,
		logger:   logger.OrDefault().WithField("component", "view_consumer"),
		metrics:  metrics,
	}
}

// Start subscribes and consumes in the background until ctx is cancelled or
// the subscription closes. The returned channel closes when consumption stops.
func (c *Consumer) Start(ctx context.Context) (<-chan struct{}, error) {
	messages, err := c.sub.Subscribe(ctx, c.topic)
	if err != nil {
		return nil, err
	}
	c.logger.WithField("topic", c.topic).Info("view consumer started")

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer observability.RecoverPanic(c.logger, "view consumer")
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				c.handle(msg)
			}
		}
	}()
	return done, nil
}

// Run consumes until ctx is cancelled or the subscription closes
func (c *Consumer) Run(ctx context.Context) error {
	done, err := c.Start(ctx)
	if err != nil {
		return err
	}
	<-done
	return nil
}

// handle always acks: a view is never redelivered
func (c *Consumer) handle(msg *message.Message) {
	defer msg.Ack()

	log := c.logger.WithField("message_id", msg.UUID)
	if id := msg.Metadata.Get(requestIDMetadata); id != "" {
		log = log.WithField("request_id", id)
	}

	var task ViewTask
	if err := json.Unmarshal(msg.Payload, &task); err != nil {
		c.metrics.ViewTask(observability.OutcomeDropped)
		log.WithError(err).Warn("dropping malformed view task")
		return
	}

	err := c.pool.TrySubmit(func(ctx context.Context) error {
		return c.recorder.RecordView(ctx, task.Slug, task.ClientIP)
	})
	if err != nil {
		if errors.Is(err, async.ErrQueueFull) {
			err = ErrQueueFull
		}
		c.metrics.ViewTask(observability.OutcomeDropped)
		log.WithError(err).WithField("slug", task.Slug).Warn("dropping view task")
	}
}
