package tagengine

import (
	"sync"

	"github.com/go-tagengine/tagengine/ioref"
	"github.com/go-tagengine/tagengine/item"
)

// Resolver is the contract a host implements to teach the dispatcher about
// a format it does not know natively (§6's custom-resolver interface).
type Resolver struct {
	Name               string
	Extension          string
	PrimaryTagType     item.TagType
	SupportedTagTypes  []item.TagType
	ReadFn             func(r ioref.File, opts ParseOptions) (*TaggedFile, error)
	WriteFn            func(w ioref.File, tag NativeTag, opts WriteOptions) error
}

// registry is the process-wide custom-resolver table (§5, §9): a single
// mutex-guarded map, written to only through RegisterResolver, and
// consulted by Classify only after every built-in magic match has failed
// so the hot classification path never touches it.
var registry = struct {
	mu        sync.Mutex
	resolvers []Resolver
}{}

// RegisterResolver adds r to the process-wide custom-resolver registry.
func RegisterResolver(r Resolver) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.resolvers = append(registry.resolvers, r)
}

func lookupResolver(name string) (Resolver, bool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	for _, r := range registry.resolvers {
		if r.Name == name {
			return r, true
		}
	}
	return Resolver{}, false
}

func allResolvers() []Resolver {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	out := make([]Resolver, len(registry.resolvers))
	copy(out, registry.resolvers)
	return out
}
