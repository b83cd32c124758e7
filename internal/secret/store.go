// Package secret keeps persistence backend passwords out of config.toml.
package secret

// SecretStore maps a backend's secret key (see domain.BackendConfig.SecretKey)
// to its password.
type SecretStore interface {
	Set(key string, value []byte) error
	// Get returns nil, nil for an unknown key.
	Get(key string) ([]byte, error)
	Delete(key string) error
}
