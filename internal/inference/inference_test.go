package inference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	body        string
	err         error
	input       *sagemakerruntime.InvokeEndpointInput
	hadDeadline bool
	calls       int
}

func (f *fakeInvoker) InvokeEndpoint(ctx context.Context, in *sagemakerruntime.InvokeEndpointInput, _ ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error) {
	f.calls++
	f.input = in
	_, f.hadDeadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &sagemakerruntime.InvokeEndpointOutput{Body: []byte(f.body)}, nil
}

func TestClassify_SendsImagePayload(t *testing.T) {
	inv := &fakeInvoker{body: `{"predicted_class": 1, "probability": 0.97}`}
	c := NewClient(inv, "team3-endpoint2", "application/x-image", 10*time.Second)

	class, err := c.Classify(context.Background(), []byte("jpeg"))
	require.NoError(t, err)

	assert.Equal(t, ClassGood, class)
	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, "team3-endpoint2", *inv.input.EndpointName)
	assert.Equal(t, "application/x-image", *inv.input.ContentType)
	assert.Equal(t, []byte("jpeg"), inv.input.Body)
	assert.True(t, inv.hadDeadline)
}

func TestClassify_Results(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Class
		wantErr error
	}{
		{"defect", `{"predicted_class": 0}`, ClassDefect, nil},
		{"good", `{"predicted_class": 1}`, ClassGood, nil},
		{"float good", `{"predicted_class": 1.0}`, ClassGood, nil},
		{"missing", `{"label": "ok"}`, 0, ErrMissingClass},
		{"out of range", `{"predicted_class": 2}`, 0, ErrInvalidClass},
		{"negative", `{"predicted_class": -1}`, 0, ErrInvalidClass},
		{"fractional", `{"predicted_class": 0.5}`, 0, ErrInvalidClass},
		{"string", `{"predicted_class": "1"}`, 0, ErrInvalidClass},
		{"null", `{"predicted_class": null}`, 0, ErrInvalidClass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(&fakeInvoker{body: tt.body}, "ep", "application/x-image", 0)
			got, err := c.Classify(context.Background(), nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_NotJSON(t *testing.T) {
	c := NewClient(&fakeInvoker{body: "<html>"}, "ep", "application/x-image", 0)
	_, err := c.Classify(context.Background(), nil)
	assert.ErrorContains(t, err, "decode inference result")
}

func TestClassify_TransportError(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("ModelError")}
	c := NewClient(inv, "ep", "application/x-image", 0)

	_, err := c.Classify(context.Background(), []byte("x"))
	assert.ErrorContains(t, err, "invoke endpoint ep")
	assert.ErrorContains(t, err, "ModelError")
	assert.Equal(t, 1, inv.calls)
	assert.False(t, inv.hadDeadline)
}

func TestNgFlag(t *testing.T) {
	assert.Equal(t, 1, ClassDefect.NgFlag())
	assert.Equal(t, 0, ClassGood.NgFlag())
}

func TestParseClass(t *testing.T) {
	_, err := ParseClass(3)
	assert.ErrorIs(t, err, ErrInvalidClass)

	c, err := ParseClass(0)
	require.NoError(t, err)
	assert.Equal(t, "defect", c.String())
}
