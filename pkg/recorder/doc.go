// Package recorder counts post views and clicks in the durable analytics store.
//
// Views are recorded off the request path: the Dispatcher publishes a ViewTask
// on an in-process watermill pub/sub, and the Consumer hands each task to a
// bounded worker pool that calls Recorder.RecordView. When the pool's queue is
// full the task is dropped and counted. Clicks are recorded synchronously by
// RecordClick because the caller needs the new total.
//
//	pubsub := recorder.NewPubSub(1024, logger)
//	dispatcher := recorder.NewDispatcher(pubsub, recorder.ViewTopic, logger, metrics)
//	consumer := recorder.NewConsumer(pubsub, recorder.ViewTopic, pool, rec, logger, metrics)
//	done, err := consumer.Start(ctx)
package recorder
