package cloud

import (
	"fmt"
	"sync"
)

var (
	backendRegistry      = map[string]*backendRegistryEntry{}
	backendRegistryMutex sync.Mutex
)

type backendRegistryEntry struct {
	Alias             string
	HumanReadableName string
	ProviderFunc      func([]byte) (Provider, error)
}

// Register makes a provider available to NewProvider under the given alias.
// Registration is explicit: host applications call Register during their own
// setup rather than relying on providers registering themselves at import
// time.
func Register(alias, humanReadableName string, providerFunc func([]byte) (Provider, error)) {
	backendRegistryMutex.Lock()
	defer backendRegistryMutex.Unlock()

	backendRegistry[alias] = &backendRegistryEntry{
		Alias:             alias,
		HumanReadableName: humanReadableName,
		ProviderFunc:      providerFunc,
	}
}

// Providers returns the registered aliases mapped to their human readable
// names.
func Providers() map[string]string {
	backendRegistryMutex.Lock()
	defer backendRegistryMutex.Unlock()

	providers := make(map[string]string, len(backendRegistry))
	for alias, backend := range backendRegistry {
		providers[alias] = backend.HumanReadableName
	}
	return providers
}

// NewProvider creates a new provider given the alias and provider-specific
// configuration. The alias must match what was passed to Register, and the
// configuration is passed to the provider for parsing.
func NewProvider(alias string, cfg []byte) (Provider, error) {
	backendRegistryMutex.Lock()
	defer backendRegistryMutex.Unlock()

	backend, ok := backendRegistry[alias]
	if !ok {
		return nil, fmt.Errorf("unknown cloud provider: %s", alias)
	}

	return backend.ProviderFunc(cfg)
}
