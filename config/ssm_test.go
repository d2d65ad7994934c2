package config

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParameters struct {
	values map[string]string
	calls  []string
}

func (f *fakeParameters) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	name := aws.ToString(in.Name)
	f.calls = append(f.calls, name)
	value, ok := f.values[name]
	if !ok {
		return nil, &types.ParameterNotFound{Message: aws.String("not found")}
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(value)}}, nil
}

func TestResolveSecretsFillsOnlyEmptyKeys(t *testing.T) {
	cfg := DefaultConfigWithRoot(t.TempDir())
	cfg.SSMParameterPrefix = "/broker/prod"
	cfg.DeepSeekAPIKey = "from-env"

	params := &fakeParameters{values: map[string]string{
		"/broker/prod/GOOGLE_API_KEY":   "gemini-secret",
		"/broker/prod/DEEPSEEK_API_KEY": "ignored",
	}}

	require.NoError(t, cfg.ResolveSecrets(context.Background(), params))
	assert.Equal(t, "gemini-secret", cfg.GoogleAPIKey)
	assert.Equal(t, "from-env", cfg.DeepSeekAPIKey)
	assert.Empty(t, cfg.OpenAIAPIKey)
	assert.NotContains(t, params.calls, "/broker/prod/DEEPSEEK_API_KEY")
}

type failingParameters struct{}

func (failingParameters) GetParameter(context.Context, *ssm.GetParameterInput, ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	return nil, errors.New("access denied")
}

func TestResolveSecretsPropagatesErrors(t *testing.T) {
	cfg := DefaultConfigWithRoot(t.TempDir())
	cfg.SSMParameterPrefix = "/broker"

	err := cfg.ResolveSecrets(context.Background(), failingParameters{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/broker/GOOGLE_API_KEY")
}

func TestResolveSecretsWithoutPrefixIsNoop(t *testing.T) {
	cfg := DefaultConfigWithRoot(t.TempDir())
	require.NoError(t, cfg.ResolveSecrets(context.Background(), failingParameters{}))
}
