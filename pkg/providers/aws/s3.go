package aws

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Sternrassler/config-collector/pkg/fetcher"
	"github.com/Sternrassler/config-collector/pkg/pagination"
	"github.com/Sternrassler/config-collector/pkg/sink"
)

// Bucket is the stored form of an S3 bucket.
type Bucket struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Region       string     `json:"region"`
	CreationDate *time.Time `json:"creation_date,omitempty"`
}

func (p *provider) listBuckets(ctx context.Context, d fetcher.Descriptor) ([]any, error) {
	pager := s3.NewListBucketsPaginator(p.clients.S3, &s3.ListBucketsInput{})
	buckets, err := pagination.Collect[*s3.ListBucketsOutput, *s3.Options](ctx, pager,
		func(out *s3.ListBucketsOutput) []types.Bucket { return out.Buckets })
	return toAny(buckets), err
}

// parseBucket resolves the bucket's region. Buckets have no provider id, so
// the record id is derived from the name.
func (p *provider) parseBucket(ctx context.Context, kind string, payload any) error {
	raw, err := payloadAs[types.Bucket](kind, payload)
	if err != nil {
		return err
	}

	name := awssdk.ToString(raw.Name)
	if name == "" {
		return fmt.Errorf("%s: bucket without name", kind)
	}

	loc, err := p.clients.S3.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: awssdk.String(name)})
	if err != nil {
		return fmt.Errorf("get location of bucket %s: %w", name, err)
	}

	bucket := Bucket{
		ID:           sink.NonProviderID(name),
		Name:         name,
		Region:       bucketRegion(loc.LocationConstraint),
		CreationDate: raw.CreationDate,
	}
	return p.put(ctx, kind, bucket.ID, bucket)
}

// bucketRegion maps the legacy location constraints to region names.
func bucketRegion(c types.BucketLocationConstraint) string {
	switch c {
	case "":
		return "us-east-1"
	case "EU":
		return "eu-west-1"
	default:
		return string(c)
	}
}
