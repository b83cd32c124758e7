package secret

import (
	"os"
	"strings"
	"sync"
)

// EnvStore reads secrets from environment variables and keeps values set at
// runtime in memory. A key such as "pageeditor:postgres:app@db" is looked up
// as PAGEEDITOR_POSTGRES_APP_DB, falling back to PAGEEDITOR_BACKEND_PASSWORD.
type EnvStore struct {
	mu     sync.RWMutex
	values map[string][]byte
	lookup func(string) (string, bool)
}

// NewEnvStore creates an EnvStore over the process environment.
func NewEnvStore() *EnvStore {
	return &EnvStore{values: make(map[string][]byte), lookup: os.LookupEnv}
}

// EnvName returns the variable consulted for key.
func EnvName(key string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (e *EnvStore) Set(key string, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.values[key] = append([]byte(nil), value...)
	return nil
}

func (e *EnvStore) Get(key string) ([]byte, error) {
	e.mu.RLock()
	v, ok := e.values[key]
	e.mu.RUnlock()
	if ok {
		return v, nil
	}
	if s, ok := e.lookup(EnvName(key)); ok {
		return []byte(s), nil
	}
	if s, ok := e.lookup("PAGEEDITOR_BACKEND_PASSWORD"); ok {
		return []byte(s), nil
	}
	return nil, nil
}

func (e *EnvStore) Delete(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.values, key)
	return nil
}
