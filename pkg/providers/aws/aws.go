// Package aws collects EC2 instances, S3 buckets and IAM users through the
// AWS SDK v2. Connect builds the clients; NewProvider registers the list and
// parse operations for each kind in a fetcher.Registry.
package aws

import (
	"context"
	"errors"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ErrNoRegion is returned when neither the options nor the environment name a region.
var ErrNoRegion = errors.New("aws region is not configured")

// ThrottleCodes are the error codes AWS services use for rate limiting, in
// addition to "Throttling".
var ThrottleCodes = []string{
	"ThrottlingException",
	"RequestLimitExceeded",
	"TooManyRequestsException",
	"SlowDown",
}

// EC2API is the part of the EC2 client the provider uses.
type EC2API interface {
	ec2.DescribeInstancesAPIClient
}

// S3API is the part of the S3 client the provider uses.
type S3API interface {
	s3.ListBucketsAPIClient
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
}

// IAMAPI is the part of the IAM client the provider uses.
type IAMAPI interface {
	iam.ListUsersAPIClient
	iam.ListAttachedUserPoliciesAPIClient
}

// Clients is the connection handle for one account and region.
type Clients struct {
	Region string
	EC2    EC2API
	S3     S3API
	IAM    IAMAPI
}

// Options selects the credentials and region to connect with.
type Options struct {
	// Region overrides AWS_REGION and the profile's region.
	Region string `yaml:"region"`

	// Profile selects a shared config profile.
	Profile string `yaml:"profile"`

	// MaxAttempts bounds the SDK's own retries. Throttled calls that run out
	// of attempts are requeued by the fetch pipeline. Zero keeps the SDK default.
	MaxAttempts int `yaml:"max_attempts"`
}

// Connect loads the shared AWS configuration and creates the service clients.
func Connect(ctx context.Context, opts Options) (*Clients, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.MaxAttempts > 0 {
		loadOpts = append(loadOpts, config.WithRetryMaxAttempts(opts.MaxAttempts))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region == "" {
		return nil, ErrNoRegion
	}

	log.Info().
		Str("component", "aws").
		Str("region", cfg.Region).
		Str("profile", opts.Profile).
		Msg("Connected to AWS")

	return NewClients(cfg), nil
}

// NewClients creates the service clients from an existing configuration.
func NewClients(cfg awssdk.Config) *Clients {
	return &Clients{
		Region: cfg.Region,
		EC2:    ec2.NewFromConfig(cfg),
		S3:     s3.NewFromConfig(cfg),
		IAM:    iam.NewFromConfig(cfg),
	}
}
