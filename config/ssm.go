package config

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// ParameterGetter is the subset of the SSM client used to resolve secrets.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// NewSSMClient builds a Parameter Store client from the default AWS chain.
func NewSSMClient(ctx context.Context) (*ssm.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return ssm.NewFromConfig(awsCfg), nil
}

// ResolveSecrets fills empty API keys from <SSMParameterPrefix>/<ENV_NAME>.
// Keys already set from the environment are left alone. A missing parameter
// is not an error.
func (c *Config) ResolveSecrets(ctx context.Context, client ParameterGetter) error {
	if c.SSMParameterPrefix == "" || client == nil {
		return nil
	}

	targets := []struct {
		name string
		dst  *string
	}{
		{"GOOGLE_API_KEY", &c.GoogleAPIKey},
		{"DEEPSEEK_API_KEY", &c.DeepSeekAPIKey},
		{"OPENAI_API_KEY", &c.OpenAIAPIKey},
		{"POSTGRES_DSN", &c.PostgresDSN},
	}
	for _, target := range targets {
		if *target.dst != "" {
			continue
		}
		value, err := parameterValue(ctx, client, path.Join(c.SSMParameterPrefix, target.name))
		if err != nil {
			return err
		}
		*target.dst = value
	}
	return nil
}

func parameterValue(ctx context.Context, client ParameterGetter, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", nil
	}
	return *result.Parameter.Value, nil
}
