// Package throttle classifies remote API errors as rate-limit rejections and
// tracks how often items are requeued because of them.
package throttle

import (
	"errors"
)

// Class is the outcome of classifying a parse error.
type Class string

const (
	// ClassThrottled marks an explicit rate-limit rejection from the remote API.
	ClassThrottled Class = "throttled"

	// ClassOther marks every other failure.
	ClassOther Class = "other"
)

// DefaultCode is the error code the remote API uses for rate-limit rejections.
const DefaultCode = "Throttling"

// CodedError is an error carrying a structured error code from the remote
// API's error envelope. smithy.APIError and client.APIError both satisfy it.
type CodedError interface {
	error
	ErrorCode() string
}

// Classifier decides whether an error is a throttling rejection.
type Classifier struct {
	codes map[string]struct{}
}

// NewClassifier creates a classifier matching DefaultCode plus any extra codes.
func NewClassifier(extra ...string) *Classifier {
	c := &Classifier{codes: map[string]struct{}{DefaultCode: {}}}
	for _, code := range extra {
		if code != "" {
			c.codes[code] = struct{}{}
		}
	}
	return c
}

// Classify returns ClassThrottled iff err wraps a CodedError whose code is in
// the classifier's set. Errors without a structured code are ClassOther even
// when their message mentions throttling.
func (c *Classifier) Classify(err error) Class {
	if err == nil {
		return ClassOther
	}

	var coded CodedError
	if !errors.As(err, &coded) {
		return ClassOther
	}

	if _, ok := c.codes[coded.ErrorCode()]; ok {
		return ClassThrottled
	}
	return ClassOther
}

// Codes returns the codes the classifier matches, in no particular order.
func (c *Classifier) Codes() []string {
	out := make([]string, 0, len(c.codes))
	for code := range c.codes {
		out = append(out, code)
	}
	return out
}

// Classify uses a classifier that only matches DefaultCode.
func Classify(err error) Class {
	return defaultClassifier.Classify(err)
}

var defaultClassifier = NewClassifier()
