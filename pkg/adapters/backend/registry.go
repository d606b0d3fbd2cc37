package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querybridge/pkg/apperrors"
)

// Factory builds a Backend from a generic settings map.
type Factory func(ctx context.Context, settings map[string]any, logger *zap.Logger) (Backend, error)

// AdapterInfo describes a registered backend adapter.
type AdapterInfo struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// Registration pairs adapter info with its factory.
type Registration struct {
	Info    AdapterInfo
	Factory Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each adapter's init() function.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredBackends returns info for all registered adapters sorted by type.
func RegisteredBackends() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetFactory returns the factory for a backend type, or nil if unregistered.
func GetFactory(backendType string) Factory {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[backendType]; ok {
		return reg.Factory
	}
	return nil
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(backendType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[backendType]
	return ok
}

// Open resolves the factory for backendType and builds the backend.
func Open(ctx context.Context, backendType string, settings map[string]any, logger *zap.Logger) (Backend, error) {
	factory := GetFactory(backendType)
	if factory == nil {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownBackend, backendType)
	}
	b, err := factory(ctx, settings, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", backendType, err)
	}
	return b, nil
}
