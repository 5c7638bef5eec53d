// Package upload copies run artifacts to remote storage once a run ends.
package upload

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Settings configures a provider.
type Settings struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string

	// Secure selects TLS when the endpoint carries no scheme.
	Secure bool
}

// Provider defines the interface for artifact upload providers.
type Provider interface {
	// Configure sets up the provider with the given settings.
	Configure(ctx context.Context, s Settings) error

	// Upload stores size bytes read from r at remotePath. A size of -1
	// means unknown.
	Upload(ctx context.Context, r io.Reader, size int64, remotePath string) error

	// Name returns the provider name.
	Name() string
}

// ProviderFactory is a function that creates a new provider instance.
type ProviderFactory func() Provider

var (
	registryMu sync.RWMutex
	registry   = make(map[string]ProviderFactory)
)

// RegisterProvider registers a new upload provider.
func RegisterProvider(name string, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// NewProvider creates a new provider instance by name.
func NewProvider(name string) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown upload provider: %s", name)
	}
	return factory(), nil
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterProvider("minio", func() Provider {
		return NewMinioProvider()
	})
}
