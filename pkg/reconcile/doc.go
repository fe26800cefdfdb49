// Package reconcile merges buffered impression counts from the fast counter
// store into the durable analytics store.
//
// A pass walks the pending-post index and, per post: checks the post still
// exists (discarding the counter otherwise), atomically drains the counter,
// skips a zero delta, then adds the delta to the durable record with one
// upsert. Draining is the atomic boundary, so overlapping passes never apply
// the same delta twice; a crash between drain and upsert loses that delta.
//
// Per-post failures are logged and counted in Result; only a failure to
// enumerate pending posts aborts a pass.
package reconcile
