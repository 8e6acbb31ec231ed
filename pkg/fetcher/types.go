package fetcher

import (
	"context"
	"fmt"
	"strings"
)

// Descriptor identifies one enumerable resource kind and how to list it.
type Descriptor struct {
	// Kind is the resource kind, e.g. "ec2.instances".
	Kind string `yaml:"kind" json:"kind"`

	// ResponseAttribute names the field of the list response holding the items.
	ResponseAttribute string `yaml:"response_attribute" json:"response_attribute"`

	// ListMethod names the list operation registered for Kind. An empty
	// method makes the descriptor a no-op.
	ListMethod string `yaml:"list_method" json:"list_method"`

	// Params are passed to the list operation untouched.
	Params map[string]any `yaml:"params" json:"params,omitempty"`

	// IgnoreListError suppresses the report when the list operation fails.
	IgnoreListError bool `yaml:"ignore_list_error" json:"ignore_list_error"`
}

// Item is a resource discovered by a list operation.
type Item struct {
	Kind    string
	Payload any

	// seq identifies the item across requeues within one invocation.
	seq uint64
}

func (it Item) key() string {
	return fmt.Sprintf("%s/%d", it.Kind, it.seq)
}

// ListFunc lists every item of a kind. Items obtained before a failure are
// returned together with the error and are kept.
type ListFunc func(ctx context.Context, d Descriptor) ([]any, error)

// ParseFunc parses one item into the caller's result sink. It may mutate
// payload in place; a failed call is retried from an unmodified copy.
type ParseFunc func(ctx context.Context, kind string, payload any) error

// Provider resolves the operations registered for each kind.
type Provider interface {
	Lister(kind, method string) (ListFunc, error)
	Parser(kind string) (ParseFunc, error)
}

// DefaultsProvider is implemented by providers that know which kinds to fetch
// when the caller does not pass any.
type DefaultsProvider interface {
	Defaults() []Descriptor
}

// Reporter receives everything that goes wrong inside the workers. Calls are
// fire-and-forget and must be safe for concurrent use.
type Reporter interface {
	ReportException(err error)
	ReportInfo(msg string)
	ReportError(msg string)
}

// NopReporter discards every report.
type NopReporter struct{}

func (NopReporter) ReportException(error) {}
func (NopReporter) ReportInfo(string)     {}
func (NopReporter) ReportError(string)    {}

// FormatServiceName turns a service identifier into a display name,
// e.g. "cloudstorage" -> "Cloud Storage".
func FormatServiceName(service string) string {
	if name, ok := serviceNames[strings.ToLower(service)]; ok {
		return name
	}
	if service == "" {
		return ""
	}
	return strings.ToUpper(service[:1]) + service[1:]
}

var serviceNames = map[string]string{
	"cloudformation": "CloudFormation",
	"cloudstorage":   "Cloud Storage",
	"cloudsql":       "Cloud SQL",
	"computeengine":  "Compute Engine",
	"ec2":            "EC2",
	"iam":            "IAM",
	"kms":            "KMS",
	"rds":            "RDS",
	"s3":             "S3",
	"stackdriver":    "Stackdriver",
}
