// Package async provides safe concurrent execution primitives for background work.
//
// SafeGo runs one fire-and-forget function with panic recovery, a timeout and
// error logging. The API server uses it for the catch-up reconcile pass at
// startup.
//
// WorkerPool is a bounded work queue consumed by a fixed number of workers. The
// view recorder uses TrySubmit so a saturated pool drops work instead of
// stalling the consumer. The reconcile scheduler does the same, so a trigger
// that finds the queue full is skipped.
//
//	pool := async.NewWorkerPool(ctx, 8, 1024, "view recorder", 10*time.Second, logger)
//	defer pool.Shutdown(5 * time.Second)
//
//	if err := pool.TrySubmit(task); errors.Is(err, async.ErrQueueFull) {
//		// drop and count
//	}
//
// Batch processes a slice with bounded concurrency and collects per-item errors
// without aborting the remaining items.
package async
