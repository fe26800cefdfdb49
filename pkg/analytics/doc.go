// Package analytics owns the durable per-post analytics record: cumulative
// impressions, views and clicks plus the derived click-through rate.
//
// # Consistency
//
// Every mutation is a single increment-and-read-back statement
// (INSERT .. ON CONFLICT DO UPDATE .. RETURNING) that also recomputes the
// click-through rate from the new values, so concurrent writers (the
// reconciler adding impressions, the recorder adding clicks and views) never
// lose updates and the rate is never stale. The same upsert is the
// get-or-create: a record exists from the first analytics event onwards.
//
// Views are deduplicated per (post, client IP) through post_views markers. A
// zero dedup window means one view per IP per post, ever.
//
// # Usage Example
//
//	store := analytics.NewPostgresStore(db)
//	rec, err := store.AddImpressions(ctx, postID, 12)
//	fmt.Printf("impressions=%d ctr=%.2f\n", rec.Impressions, rec.ClickThroughRate)
//
// # Aggregation
//
// Aggregator.SnapshotDaily copies the cumulative counters into
// post_analytics_daily once a day so Service can serve per-day series.
package analytics
