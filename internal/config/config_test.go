package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "local")

	cfg, err := Load(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "team3-endpoint2", cfg.Inference.EndpointName)
	assert.Equal(t, "application/x-image", cfg.Inference.ContentType)
	assert.Equal(t, 10*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, "http://18.205.110.55:8080", cfg.Report.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Report.Timeout)
	assert.Equal(t, "1.1", cfg.Report.CropLT)
	assert.Equal(t, "8.8", cfg.Report.CropRB)
	assert.False(t, cfg.Report.FailureFatal)
	assert.Equal(t, 5, cfg.Pipeline.GroupSize)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.DownloadTimeout)
	assert.Equal(t, "/tmp", cfg.Pipeline.ScratchDir)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("REPORT_BASE_URL", "https://report.example.com")
	t.Setenv("REPORT_FAILURE_FATAL", "true")
	t.Setenv("GROUP_SIZE", "10")
	t.Setenv("INFERENCE_TIMEOUT", "3s")

	cfg, err := Load(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "https://report.example.com", cfg.Report.BaseURL)
	assert.True(t, cfg.Report.FailureFatal)
	assert.Equal(t, 10, cfg.Pipeline.GroupSize)
	assert.Equal(t, 3*time.Second, cfg.Inference.Timeout)
}

func TestLoad_LogLevelNotValidated(t *testing.T) {
	t.Setenv("APP_ENV", "local")

	for _, level := range []string{"DEBUG", "trace"} {
		t.Setenv("LOG_LEVEL", level)
		cfg, err := Load(context.Background(), nil)
		require.NoError(t, err, level)
		assert.Equal(t, level, cfg.LogLevel)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("GROUP_SIZE", "0")

	_, err := Load(context.Background(), nil)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "validate", cfgErr.Stage)
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("REPORT_TIMEOUT", "soon")

	_, err := Load(context.Background(), nil)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "parse", cfgErr.Stage)
}

type fakeEnv map[string]string

func (f fakeEnv) Environ() []string {
	out := make([]string, 0, len(f))
	for k, v := range f {
		out = append(out, k+"="+v)
	}
	return out
}

func (f fakeEnv) LookupEnv(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

func (f fakeEnv) Setenv(key, value string) error {
	f[key] = value
	return nil
}

type fakeSSM struct {
	values map[string]string
	calls  [][]string
	err    error
}

func (f *fakeSSM) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.calls = append(f.calls, in.Names)
	if f.err != nil {
		return nil, f.err
	}
	out := &ssm.GetParametersOutput{}
	for _, name := range in.Names {
		v, ok := f.values[name]
		if !ok {
			out.InvalidParameters = append(out.InvalidParameters, name)
			continue
		}
		out.Parameters = append(out.Parameters, ssmtypes.Parameter{Name: aws.String(name), Value: aws.String(v)})
	}
	return out, nil
}

func TestResolveSSMParams(t *testing.T) {
	e := fakeEnv{
		"REPORT_BASE_URL_SSM_PARAM":         "/diecast/report-url",
		"INFERENCE_ENDPOINT_NAME_SSM_PARAM": "/diecast/endpoint",
		"INFERENCE_ENDPOINT_NAME":           "already-set",
	}
	client := &fakeSSM{values: map[string]string{"/diecast/report-url": "http://10.0.0.1:8080"}}

	err := resolveSSMParams(context.Background(), client, e)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.1:8080", e["REPORT_BASE_URL"])
	assert.Equal(t, "already-set", e["INFERENCE_ENDPOINT_NAME"])
	require.Len(t, client.calls, 1)
	assert.Equal(t, []string{"/diecast/report-url"}, client.calls[0])
}

func TestResolveSSMParams_NothingToResolve(t *testing.T) {
	err := resolveSSMParams(context.Background(), nil, fakeEnv{"LOG_LEVEL": "debug"})
	assert.NoError(t, err)
}

func TestResolveSSMParams_MissingClient(t *testing.T) {
	err := resolveSSMParams(context.Background(), nil, fakeEnv{"REPORT_BASE_URL_SSM_PARAM": "/x"})
	assert.ErrorContains(t, err, "SSM client required")
}

func TestResolveSSMParams_NotFound(t *testing.T) {
	client := &fakeSSM{values: map[string]string{}}
	err := resolveSSMParams(context.Background(), client, fakeEnv{"REPORT_BASE_URL_SSM_PARAM": "/missing"})
	assert.ErrorContains(t, err, "not found")
}

func TestResolveSSMParams_ClientError(t *testing.T) {
	client := &fakeSSM{err: errors.New("throttled")}
	err := resolveSSMParams(context.Background(), client, fakeEnv{"REPORT_BASE_URL_SSM_PARAM": "/x"})
	assert.ErrorContains(t, err, "throttled")
}
