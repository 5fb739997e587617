package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSecretNotFound is returned when no manager holds the requested key
var ErrSecretNotFound = errors.New("secret not found")

// SecretManager defines the interface for secret lookup
type SecretManager interface {
	GetSecret(ctx context.Context, key string) (string, error)
}

// FileSecretManager reads secrets mounted as files, one secret per file
type FileSecretManager struct {
	basePath string
}

// NewFileSecretManager creates a new file-based secret manager. An absolute
// key is read as is; a relative one is resolved against basePath.
func NewFileSecretManager(basePath string) *FileSecretManager {
	return &FileSecretManager{basePath: basePath}
}

// GetSecret reads a secret file and trims trailing whitespace
func (f *FileSecretManager) GetSecret(ctx context.Context, key string) (string, error) {
	path := key
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.basePath, key)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return "", fmt.Errorf("failed to read secret %s: %w", key, err)
	}
	value := strings.TrimRight(string(data), "\r\n\t ")
	if value == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrSecretNotFound, key)
	}
	return value, nil
}
