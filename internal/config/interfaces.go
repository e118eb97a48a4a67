package config

import "context"

// SecretProvider resolves secret values from an external parameter store.
// Production uses the SSM-backed implementation; tests use an in-memory map.
type SecretProvider interface {
	// GetParametersBatch fetches the values for the given parameter paths.
	// The returned map is keyed by path; missing parameters are simply
	// absent from the map (the caller decides whether that is fatal).
	GetParametersBatch(ctx context.Context, paths []string) (map[string]string, error)
}
