package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmParamSuffix marks a variable whose value is an SSM path. For example
// REPORT_BASE_URL_SSM_PARAM=/diecast/prod/report-url fills REPORT_BASE_URL.
const ssmParamSuffix = "_SSM_PARAM"

// ssmMaxBatchSize is the GetParameters API limit.
const ssmMaxBatchSize = 10

// ParameterGetter is the subset of *ssm.Client used to resolve parameters.
type ParameterGetter interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// env abstracts the process environment so resolution can be tested without
// touching os state.
type env interface {
	Environ() []string
	LookupEnv(key string) (string, bool)
	Setenv(key, value string) error
}

type osEnv struct{}

func (osEnv) Environ() []string                   { return os.Environ() }
func (osEnv) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }
func (osEnv) Setenv(key, value string) error      { return os.Setenv(key, value) }

// resolveSSMParams fills every TARGET variable that has a TARGET_SSM_PARAM
// pointer and is not already set.
func resolveSSMParams(ctx context.Context, params ParameterGetter, e env) error {
	targets := make(map[string]string) // ssm path -> env var
	var paths []string
	for _, entry := range e.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, ssmParamSuffix) || value == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, set := e.LookupEnv(target); set {
			continue
		}
		if _, dup := targets[value]; !dup {
			paths = append(paths, value)
		}
		targets[value] = target
	}
	if len(paths) == 0 {
		return nil
	}
	if params == nil {
		return errors.New("SSM client required to resolve " + strings.Join(paths, ", "))
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for i := 0; i < len(paths); i += ssmMaxBatchSize {
		end := min(i+ssmMaxBatchSize, len(paths))
		out, err := params.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          paths[i:end],
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("SSM GetParameters: %w", err)
		}
		if len(out.InvalidParameters) > 0 {
			return fmt.Errorf("SSM parameters not found: %v", out.InvalidParameters)
		}
		for _, p := range out.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			if err := e.Setenv(targets[*p.Name], *p.Value); err != nil {
				return fmt.Errorf("set %s: %w", targets[*p.Name], err)
			}
		}
	}
	return nil
}
