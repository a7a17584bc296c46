// Package inference classifies diecast photos with a SageMaker endpoint.
//
// The model's positive class means "good". The reporting service instead
// tracks defects, so callers report NgFlag, the inverse of the class.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/rs/zerolog/log"
)

// classField is the response key carrying the predicted class.
const classField = "predicted_class"

var (
	// ErrMissingClass means the response had no predicted_class key.
	ErrMissingClass = errors.New("unexpected inference result format: missing " + classField)
	// ErrInvalidClass means predicted_class was not 0 or 1.
	ErrInvalidClass = errors.New("invalid " + classField)
)

// Class is the binary model output.
type Class int

const (
	ClassDefect Class = 0
	ClassGood   Class = 1
)

// ParseClass validates a decoded JSON number.
func ParseClass(v float64) (Class, error) {
	if v != math.Trunc(v) || (v != 0 && v != 1) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidClass, v)
	}
	return Class(v), nil
}

// NgFlag is 1 for a defect and 0 for a good part.
func (c Class) NgFlag() int {
	if c == ClassDefect {
		return 1
	}
	return 0
}

func (c Class) String() string {
	switch c {
	case ClassDefect:
		return "defect"
	case ClassGood:
		return "good"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Invoker is the subset of *sagemakerruntime.Client used here.
type Invoker interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// Client sends one image per call to a named endpoint.
type Client struct {
	invoker      Invoker
	endpointName string
	contentType  string
	timeout      time.Duration
}

// NewClient creates a Client. A zero timeout leaves the caller's deadline
// as the only bound.
func NewClient(invoker Invoker, endpointName, contentType string, timeout time.Duration) *Client {
	return &Client{
		invoker:      invoker,
		endpointName: endpointName,
		contentType:  contentType,
		timeout:      timeout,
	}
}

// EndpointName returns the configured endpoint.
func (c *Client) EndpointName() string {
	return c.endpointName
}

// Classify submits payload and returns the validated class.
func (c *Client) Classify(ctx context.Context, payload []byte) (Class, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	log.Debug().Str("endpoint", c.endpointName).Int("payloadSize", len(payload)).Msg("Invoking inference endpoint")
	out, err := c.invoker.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: &c.endpointName,
		ContentType:  &c.contentType,
		Body:         payload,
	})
	if err != nil {
		return 0, fmt.Errorf("invoke endpoint %s: %w", c.endpointName, err)
	}
	log.Info().
		Str("endpoint", c.endpointName).
		RawJSON("result", rawOrQuoted(out.Body)).
		Dur("duration", time.Since(start)).
		Msg("Inference result received")

	return decodeClass(out.Body)
}

func decodeClass(body []byte) (Class, error) {
	var result map[string]json.RawMessage
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("decode inference result: %w", err)
	}
	raw, ok := result[classField]
	if !ok {
		return 0, ErrMissingClass
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || string(raw) == "null" {
		return 0, fmt.Errorf("%w: %s", ErrInvalidClass, raw)
	}
	return ParseClass(v)
}

// rawOrQuoted keeps invalid JSON from corrupting the log line.
func rawOrQuoted(b []byte) []byte {
	if json.Valid(b) {
		return b
	}
	q, _ := json.Marshal(string(b))
	return q
}
