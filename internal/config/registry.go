package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mutecast/mutecast/pkg/audio"
	"github.com/mutecast/mutecast/pkg/provider/fingerprint"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// capability. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	fingerprint map[string]func(ProviderEntry) (fingerprint.Provider, error)
	audio       map[string]func(ProviderEntry) (audio.Platform, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		fingerprint: make(map[string]func(ProviderEntry) (fingerprint.Provider, error)),
		audio:       make(map[string]func(ProviderEntry) (audio.Platform, error)),
	}
}

// RegisterFingerprint registers a fingerprint provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterFingerprint(name string, factory func(ProviderEntry) (fingerprint.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fingerprint[name] = factory
}

// RegisterAudio registers an audio platform factory under name.
func (r *Registry) RegisterAudio(name string, factory func(ProviderEntry) (audio.Platform, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio[name] = factory
}

// CreateFingerprint instantiates a fingerprint provider using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateFingerprint(entry ProviderEntry) (fingerprint.Provider, error) {
	r.mu.RLock()
	factory, ok := r.fingerprint[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: fingerprint/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateAudio instantiates an audio platform using the factory registered
// under entry.Name.
func (r *Registry) CreateAudio(entry ProviderEntry) (audio.Platform, error) {
	r.mu.RLock()
	factory, ok := r.audio[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: audio/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
