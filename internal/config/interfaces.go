package config

import "context"

// SecretProvider resolves secret values by key. SSMProvider backs deployed
// environments.
type SecretProvider interface {
	// GetParametersBatch returns key -> plaintext for every key it could
	// resolve. Keys it could not find are omitted rather than reported,
	// unless the backing store treats that as an error.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
