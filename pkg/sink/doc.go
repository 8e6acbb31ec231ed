// Package sink stores the resources parsed by the fetch pipeline.
//
// A Sink is written concurrently by every parse worker. Two backends exist:
//
//   - MemorySink keeps records in process and is what the CLI prints.
//   - RedisSink writes each record as a JSON value under a deterministic key
//     and indexes ids per kind, so separate collector runs can feed one store.
//
// # Basic Usage
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := sink.NewRedisSink(rdb, sink.RedisConfig{Prefix: "collector", Provider: "aws"})
//
//	if err := s.Put(ctx, "s3.buckets", sink.NonProviderID("my-bucket"), bucket); err != nil {
//		return err
//	}
//
//	records, err := s.List(ctx, "s3.buckets")
//
// # Keys
//
//	collector:aws:s3.buckets:<id>      record (JSON)
//	collector:aws:idx:s3.buckets       set of ids for the kind
//	collector:aws:kinds                set of kinds written
//
// # Metrics
//
//   - collector_sink_writes_total{backend} - Records written
//   - collector_sink_errors_total{operation} - Backend operation errors
package sink
