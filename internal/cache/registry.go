package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/funvibe/adapt/internal/image"
	"github.com/funvibe/adapt/internal/synth"
	"github.com/funvibe/adapt/internal/typemodel"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"
)

// Registry hands out synthesized types by request. Concurrent requests for
// the same key share one synthesis; a result becomes visible only once it
// is complete.
type Registry struct {
	engine *synth.Engine
	store  *Store
	log    commonlog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]*synth.Result

	// Syntheses counts calls into the engine.
	Syntheses atomic.Int64
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithStore backs the registry with a persistent image store.
func WithStore(s *Store) RegistryOption {
	return func(r *Registry) { r.store = s }
}

// WithLogger replaces the registry's logger.
func WithLogger(log commonlog.Logger) RegistryOption {
	return func(r *Registry) { r.log = log }
}

// NewRegistry creates a registry synthesizing with engine.
func NewRegistry(engine *synth.Engine, opts ...RegistryOption) *Registry {
	r := &Registry{
		engine:  engine,
		log:     commonlog.GetLogger("adapt.cache"),
		entries: make(map[string]*synth.Result),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the synthesized type for the request and its fingerprint.
func (r *Registry) Get(desc typemodel.Descriptor, mode typemodel.Mode) (*synth.Result, string, error) {
	key := Fingerprint(desc, mode)
	if res := r.lookup(key); res != nil {
		return res, key, nil
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		if res := r.lookup(key); res != nil {
			return res, nil
		}
		res, err := r.load(key, desc, mode)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.entries[key] = res
		r.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return nil, key, err
	}
	return v.(*synth.Result), key, nil
}

// Len returns the number of cached types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) lookup(key string) *synth.Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[key]
}

func (r *Registry) load(key string, desc typemodel.Descriptor, mode typemodel.Mode) (*synth.Result, error) {
	if r.store != nil {
		data, err := r.store.Lookup(key)
		switch {
		case err == nil:
			res, err := fromImage(data)
			if err == nil {
				r.log.Debugf("image store hit for %s (%s)", key, res.Name)
				return res, nil
			}
			r.log.Warningf("discarding stored image %s: %s", key, err)
		case !errors.Is(err, ErrImageNotFound):
			r.log.Warningf("image store lookup %s: %s", key, err)
		}
	}

	r.Syntheses.Add(1)
	res, err := r.engine.Synthesize(desc, mode)
	if err != nil {
		return nil, err
	}
	if r.store != nil {
		if err := r.store.Put(key, res.Name, res.Image); err != nil {
			r.log.Warningf("failed to store image %s: %s", key, err)
		}
	}
	return res, nil
}

func fromImage(data []byte) (*synth.Result, error) {
	img, err := image.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decoding stored image: %w", err)
	}
	return &synth.Result{
		Name:            img.Name,
		Image:           data,
		SAM:             img.SAM,
		AutoConvertible: img.AutoConvertible,
	}, nil
}
