package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmMaxBatchSize is the maximum number of parameters retrievable in a
// single SSM GetParameters call. This is an AWS service limit.
const ssmMaxBatchSize = 10

// ssmAPI abstracts the SSM GetParameters operation for testability.
type ssmAPI interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMProvider implements SecretProvider against AWS SSM Parameter Store.
type SSMProvider struct {
	client ssmAPI
}

// NewSSMProvider constructs an SSMProvider using the default AWS credential
// chain. Intended for non-local environments where Stripe and database
// secrets live in Parameter Store.
func NewSSMProvider(ctx context.Context) (*SSMProvider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SSM: %w", err)
	}
	return &SSMProvider{client: ssm.NewFromConfig(awsCfg)}, nil
}

// NewSSMProviderWithClient constructs an SSMProvider with a caller-provided
// client. Used in tests.
func NewSSMProviderWithClient(client ssmAPI) *SSMProvider {
	return &SSMProvider{client: client}
}

// GetParametersBatch fetches the given parameter paths with decryption,
// chunked to the SSM per-call limit. Invalid (missing) parameters are
// omitted from the result rather than treated as an error.
func (p *SSMProvider) GetParametersBatch(ctx context.Context, paths []string) (map[string]string, error) {
	resolved := make(map[string]string, len(paths))

	for start := 0; start < len(paths); start += ssmMaxBatchSize {
		end := start + ssmMaxBatchSize
		if end > len(paths) {
			end = len(paths)
		}

		out, err := p.client.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          paths[start:end],
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("ssm GetParameters: %w", err)
		}

		for _, param := range out.Parameters {
			if param.Name != nil && param.Value != nil {
				resolved[*param.Name] = *param.Value
			}
		}
	}

	return resolved, nil
}
