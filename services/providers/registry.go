package providers

import (
	"errors"
	"strings"
	"sync"
)

var (
	// ErrClientNotFound is returned when a provider is not registered.
	ErrClientNotFound = errors.New("provider client not found")

	// ErrAlreadyRegistered is returned when registering a duplicate provider.
	ErrAlreadyRegistered = errors.New("provider already registered")
)

// placeholderCredentials are sentinel values operators leave in env files;
// a provider configured with one of these is treated as unconfigured.
var placeholderCredentials = map[string]struct{}{
	"":                  {},
	"changeme":          {},
	"placeholder":       {},
	"your-api-key":      {},
	"your-api-key-here": {},
}

// CredentialFunc reports a provider's current credential. It is called on
// every availability check so operators can rotate credentials in without a
// restart being strictly required.
type CredentialFunc func() string

type entry struct {
	client     Client
	credential CredentialFunc
}

// Registry resolves which provider clients are usable at a point in time and
// supplies the ordered candidate list to the orchestrator. Order is the fixed
// configured priority list, never reordered by observed behavior.
type Registry struct {
	mu       sync.RWMutex
	priority []string
	entries  map[string]entry
}

// NewRegistry creates a registry with the given fixed priority order.
func NewRegistry(priority []string) *Registry {
	return &Registry{
		priority: append([]string(nil), priority...),
		entries:  make(map[string]entry),
	}
}

// Register adds a provider client with its credential source. Providers not
// named in the priority list are appended after it.
func (r *Registry) Register(client Client, credential CredentialFunc) error {
	if client == nil {
		return errors.New("client cannot be nil")
	}
	name := client.Name()
	if name == "" {
		return errors.New("client name cannot be empty")
	}
	if credential == nil {
		credential = func() string { return "" }
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return ErrAlreadyRegistered
	}
	r.entries[name] = entry{client: client, credential: credential}

	for _, p := range r.priority {
		if p == name {
			return nil
		}
	}
	r.priority = append(r.priority, name)
	return nil
}

// Available returns the provider identifiers that are currently usable, in
// priority order. Zero available providers is not an error here; exhaustion
// is the orchestrator's concern.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.priority))
	for _, name := range r.priority {
		e, ok := r.entries[name]
		if !ok {
			continue
		}
		if credentialUsable(e.credential()) {
			out = append(out, name)
		}
	}
	return out
}

// Client returns the client for a provider identifier.
func (r *Registry) Client(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, ErrClientNotFound
	}
	return e.client, nil
}

// Count returns the number of registered providers, configured or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func credentialUsable(cred string) bool {
	_, placeholder := placeholderCredentials[strings.ToLower(strings.TrimSpace(cred))]
	return !placeholder
}
