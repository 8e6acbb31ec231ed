// Package fetcher runs the two-stage collection pipeline.
//
// A listing pool takes resource-kind descriptors off the service queue, calls
// the provider's list operation for each and pushes every discovered item onto
// the target queue. A parsing pool takes items off the target queue and calls
// the provider's parse operation, which writes into a caller-owned sink.
//
// Example usage:
//
//	reg := fetcher.NewRegistry()
//	reg.RegisterList("buckets", "ListBuckets", listBuckets)
//	reg.RegisterParse("buckets", parseBucket)
//
//	f, err := fetcher.New(reg, fetcher.DefaultConfig(), fetcher.WithReporter(reporter))
//	if err != nil {
//		return err
//	}
//	err = f.FetchAll(ctx, []fetcher.Descriptor{
//		{Kind: "buckets", ResponseAttribute: "Buckets", ListMethod: "ListBuckets"},
//	})
//
// The pipeline:
//   - Lists every kind in parallel; a failing list is reported and abandoned
//   - Parses every item in parallel from a deep-copied backup
//   - Requeues items immediately when the API answers with a throttling code
//   - Reports and drops items that fail for any other reason
//   - Returns once both queues have drained and every worker has exited
//
// Per-item failures never reach the caller; they go to the Reporter.
package fetcher
