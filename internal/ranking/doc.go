// Package ranking computes most-played song rankings over period windows
// (day, week, month, all-time) for per-user top lists and global charts.
//
// Two Engine implementations exist with identical semantics:
//
//   - Counters: incremental, updated on every accepted play. Serves the hot
//     read path with no history scan.
//   - Aggregator: on-demand, scans stored history at query time. Serves as
//     the correctness oracle and as the source for periodic recomputes.
//
// Basic usage:
//
//	counters := ranking.NewCounters()
//	// fed as a derived view on every accepted play...
//
//	period, err := ranking.ParsePeriod("week")
//	if err != nil {
//		// invalid period from the client
//	}
//	top, err := counters.TopSongsForUser(ctx, userID, period, 10)
//
// Ordering is deterministic: play count descending, then total listened
// seconds descending, then song ID ascending. Both implementations bucket
// events by their occurredAt timestamp, so a late-arriving event counts in
// the window it happened in.
package ranking
