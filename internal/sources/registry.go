package sources

import (
	"fmt"
	"net/http"
)

// UnknownSourceError is returned when a source key has no registered
// adapter. This is a configuration error and should surface to the
// operator, not be silently ignored at runtime.
type UnknownSourceError struct {
	Key string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source: %s", e.Key)
}

// Factory builds a fresh adapter instance for one invocation.
type Factory func() Adapter

// Entry is one catalog listing: the registration key and display title.
type Entry struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

// Registry maps source keys to adapter factories. The catalog is fixed and
// fully registered at process start; registration order is deterministic
// and part of the contract (List preserves it).
type Registry struct {
	order     []string
	titles    map[string]string
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		titles:    make(map[string]string),
		factories: make(map[string]Factory),
	}
}

// Register adds an adapter factory under key. Duplicate keys are a
// programmer error and panic at process start.
func (r *Registry) Register(key, title string, factory Factory) {
	if _, exists := r.factories[key]; exists {
		panic(fmt.Sprintf("source already registered: %s", key))
	}
	r.order = append(r.order, key)
	r.titles[key] = title
	r.factories[key] = factory
}

// Resolve returns a fresh adapter instance for key.
func (r *Registry) Resolve(key string) (Adapter, error) {
	factory, ok := r.factories[key]
	if !ok {
		return nil, &UnknownSourceError{Key: key}
	}
	return factory(), nil
}

// List returns the catalog in registration order.
func (r *Registry) List() []Entry {
	entries := make([]Entry, 0, len(r.order))
	for _, key := range r.order {
		entries = append(entries, Entry{Key: key, Title: r.titles[key]})
	}
	return entries
}

// Catalog keys for the built-in adapters.
const (
	KeyRSSFeed   = "rss-feed"
	KeyAtomFeed  = "atom-feed"
	KeyEMM       = "emm"
	KeyReliefWeb = "relief-web"
)

// NewDefaultRegistry registers the built-in source catalog. The order
// below is the canonical catalog order.
func NewDefaultRegistry(client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}

	r := NewRegistry()
	r.Register(KeyRSSFeed, "RSS Feed", func() Adapter { return NewRSSFeed(client) })
	r.Register(KeyAtomFeed, "Atom Feed", func() Adapter { return NewAtomFeed(client) })
	r.Register(KeyEMM, "European Media Monitor", func() Adapter { return NewEMM(client) })
	r.Register(KeyReliefWeb, "ReliefWeb", func() Adapter { return NewReliefWeb(client) })
	return r
}
