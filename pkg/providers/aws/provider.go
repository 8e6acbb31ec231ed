package aws

import (
	"context"
	"fmt"

	"github.com/Sternrassler/config-collector/pkg/fetcher"
	"github.com/Sternrassler/config-collector/pkg/sink"
)

// Kinds collected by the provider.
const (
	KindInstances = "ec2.instances"
	KindBuckets   = "s3.buckets"
	KindUsers     = "iam.users"
)

// Name is the provider name used in sink keys.
const Name = "aws"

// DefaultDescriptors lists every kind the provider collects.
func DefaultDescriptors() []fetcher.Descriptor {
	return []fetcher.Descriptor{
		{Kind: KindInstances, ResponseAttribute: "Reservations", ListMethod: "DescribeInstances"},
		{Kind: KindBuckets, ResponseAttribute: "Buckets", ListMethod: "ListBuckets"},
		{Kind: KindUsers, ResponseAttribute: "Users", ListMethod: "ListUsers"},
	}
}

// provider holds the clients the registered closures call.
type provider struct {
	clients *Clients
	sink    sink.Sink
}

// NewProvider registers the AWS kinds. Parsed resources are written to s.
func NewProvider(clients *Clients, s sink.Sink) *fetcher.Registry {
	p := &provider{clients: clients, sink: s}

	reg := fetcher.NewRegistry()
	reg.RegisterList(KindInstances, "DescribeInstances", p.listInstances)
	reg.RegisterParse(KindInstances, p.parseInstance)

	reg.RegisterList(KindBuckets, "ListBuckets", p.listBuckets)
	reg.RegisterParse(KindBuckets, p.parseBucket)

	reg.RegisterList(KindUsers, "ListUsers", p.listUsers)
	reg.RegisterParse(KindUsers, p.parseUser)

	for _, d := range DefaultDescriptors() {
		reg.AddDefault(d)
	}
	return reg
}

// toAny widens a typed slice for fetcher.ListFunc.
func toAny[T any](items []T) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// payloadAs asserts the payload type a parse operation expects.
func payloadAs[T any](kind string, payload any) (T, error) {
	v, ok := payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s: unexpected payload type %T", kind, payload)
	}
	return v, nil
}

func (p *provider) put(ctx context.Context, kind, id string, value any) error {
	if err := p.sink.Put(ctx, kind, id, value); err != nil {
		return fmt.Errorf("store %s %s: %w", kind, id, err)
	}
	return nil
}
