package config

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// getParametersLimit is the most names one GetParameters call accepts.
const getParametersLimit = 10

type parameterStore interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMProvider reads sprinkler secrets from SSM Parameter Store.
//
// Absolute names ("/shared/wunderground_key") are used as given. Relative
// names ("wunderground_key") live under the provider's prefix, normally
// "/sprinkler/<APP_ENV>". Results are keyed by the name the caller asked for.
// Names SSM does not know are left out of the result; the loader reports
// them against the variable that referenced them.
type SSMProvider struct {
	region   string
	endpoint string
	prefix   string

	store parameterStore
}

// NewSSMProvider creates a provider for region. endpoint, when set, replaces
// the SSM endpoint (LocalStack).
func NewSSMProvider(region, endpoint, prefix string) *SSMProvider {
	return &SSMProvider{region: region, endpoint: endpoint, prefix: prefix}
}

// ParameterPrefix is the folder relative parameter names resolve under.
func ParameterPrefix(appEnv string) string {
	return "/sprinkler/" + appEnv
}

func (p *SSMProvider) qualify(name string) string {
	if strings.HasPrefix(name, "/") || p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

func (p *SSMProvider) connect(ctx context.Context) (parameterStore, error) {
	if p.store != nil {
		return p.store, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
	if err != nil {
		return nil, fmt.Errorf("aws config for region %s: %w", p.region, err)
	}
	p.store = ssm.NewFromConfig(cfg, func(o *ssm.Options) {
		if p.endpoint != "" {
			o.BaseEndpoint = aws.String(p.endpoint)
		}
	})
	return p.store, nil
}

// GetParametersBatch fetches keys with decryption, ten names per call.
func (p *SSMProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	found := make(map[string]string, len(keys))

	// One SSM name can back several requested keys.
	requested := make(map[string][]string, len(keys))
	var names []string
	for _, k := range keys {
		full := p.qualify(k)
		if _, seen := requested[full]; !seen {
			names = append(names, full)
		}
		requested[full] = append(requested[full], k)
	}
	if len(names) == 0 {
		return found, nil
	}

	store, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}

	for len(names) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ssm lookup interrupted: %w", err)
		}
		n := min(getParametersLimit, len(names))
		chunk := names[:n]
		names = names[n:]

		out, err := store.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          chunk,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("ssm get parameters %s: %w", strings.Join(chunk, ","), err)
		}
		for _, param := range out.Parameters {
			name, value := aws.ToString(param.Name), aws.ToString(param.Value)
			for _, k := range requested[name] {
				found[k] = value
			}
		}
	}
	return found, nil
}
