package config

import "context"

// SecretProvider resolves secret references such as the forecast API key. SSM
// Parameter Store backs it outside local development; plain environment
// variables back it locally.
type SecretProvider interface {
	// GetParametersBatch resolves keys (SSM parameter paths or equivalent
	// identifiers) and returns key -> plaintext for every key it found.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
