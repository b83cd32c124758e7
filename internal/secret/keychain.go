package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const keychainService = "pageeditor-backends"

// exitItemNotFound is what `security` exits with for a missing item.
const exitItemNotFound = 44

// runFunc runs `security` with args and returns its stdout.
type runFunc func(args ...string) ([]byte, error)

// KeychainStore keeps backend passwords in the macOS login keychain, one
// generic-password item per backend under the pageeditor service.
type KeychainStore struct {
	run runFunc
}

func NewKeychainStore() *KeychainStore {
	return &KeychainStore{run: runSecurity}
}

func runSecurity(args ...string) ([]byte, error) {
	var stderr strings.Builder
	cmd := exec.Command("security", args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, &securityError{msg: strings.TrimSpace(stderr.String()), err: err}
	}
	return out, nil
}

type securityError struct {
	msg string
	err error
}

func (e *securityError) Error() string {
	if e.msg == "" {
		return e.err.Error()
	}
	return e.msg + ": " + e.err.Error()
}

func (e *securityError) Unwrap() error { return e.err }

func notFound(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == exitItemNotFound
}

// Set stores value for key, replacing an existing item.
func (k *KeychainStore) Set(key string, value []byte) error {
	_, err := k.run("add-generic-password", "-U",
		"-a", key,
		"-s", keychainService,
		"-w", string(value),
	)
	if err != nil {
		return fmt.Errorf("keychain set %s: %w", key, err)
	}
	return nil
}

// Get returns the password for key, or nil when the keychain has none.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, err := k.run("find-generic-password", "-a", key, "-s", keychainService, "-w")
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keychain get %s: %w", key, err)
	}
	return []byte(strings.TrimRight(string(out), "\n")), nil
}

// Delete removes key. A missing item is not an error.
func (k *KeychainStore) Delete(key string) error {
	_, err := k.run("delete-generic-password", "-a", key, "-s", keychainService)
	if err != nil && !notFound(err) {
		return fmt.Errorf("keychain delete %s: %w", key, err)
	}
	return nil
}
