package resolver

import (
	"context"
	"sort"
	"sync"

	"github.com/lexiqai/voice-transcriber/internal/message"
)

// Resolver fetches the audio of one element for a single platform
type Resolver interface {
	Resolve(ctx context.Context, el message.Element) (Outcome, error)
}

// Registry dispatches to the resolver registered for a message's platform
type Registry struct {
	mu        sync.RWMutex
	resolvers map[message.Platform]Resolver
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[message.Platform]Resolver)}
}

// Register binds a resolver to a platform, replacing any previous binding
func (r *Registry) Register(platform message.Platform, res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[platform] = res
}

// Platforms returns the registered platforms in name order
func (r *Registry) Platforms() []message.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	platforms := make([]message.Platform, 0, len(r.resolvers))
	for p := range r.resolvers {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}

// Resolve resolves el with the platform's resolver. Unregistered platforms
// yield a platform_unsupported failure. Errors are transport failures.
func (r *Registry) Resolve(ctx context.Context, platform message.Platform, el message.Element) (Outcome, error) {
	r.mu.RLock()
	res, ok := r.resolvers[platform]
	r.mu.RUnlock()

	if !ok {
		return Failed(platform, ReasonPlatformUnsupported), nil
	}
	return res.Resolve(ctx, el)
}
