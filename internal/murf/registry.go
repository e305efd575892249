package murf

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Turn is the handle for one synthesis turn. Done is closed when the turn's
// context is torn down by a final marker, a server error, an interruption,
// or connection teardown.
type Turn struct {
	ContextID string

	done chan struct{}
	once sync.Once
}

// Done returns a channel closed when the turn has finished.
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

func (t *Turn) finish() {
	t.once.Do(func() { close(t.done) })
}

type audioContext struct {
	turn    *Turn
	created time.Time
	bytes   int64
}

// Registry tracks the live synthesis contexts. All shared context state is
// funneled through Begin/End/Available so the receive loop can check
// availability before acting instead of sharing a raw context id field.
type Registry struct {
	mu       sync.Mutex
	contexts map[string]*audioContext
}

// NewRegistry creates an empty context registry.
func NewRegistry() *Registry {
	return &Registry{
		contexts: make(map[string]*audioContext),
	}
}

// Begin allocates a fresh context with a unique id and registers its audio
// accounting. The caller is responsible for only beginning a context when
// none is active.
func (r *Registry) Begin() *Turn {
	r.mu.Lock()
	defer r.mu.Unlock()

	turn := &Turn{
		ContextID: uuid.New().String(),
		done:      make(chan struct{}),
	}
	r.contexts[turn.ContextID] = &audioContext{
		turn:    turn,
		created: time.Now(),
	}
	return turn
}

// End removes the context and signals its turn as finished. Ending an id
// that is already absent is a no-op.
func (r *Registry) End(id string) {
	r.mu.Lock()
	actx, ok := r.contexts[id]
	if ok {
		delete(r.contexts, id)
	}
	r.mu.Unlock()

	if ok {
		actx.turn.finish()
	}
}

// turnFor returns the turn handle for a live context, or nil.
func (r *Registry) turnFor(id string) *Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	if actx, ok := r.contexts[id]; ok {
		return actx.turn
	}
	return nil
}

// Available reports whether id refers to a live context. Inbound messages
// whose context id is not available are dropped without side effects.
func (r *Registry) Available(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.contexts[id]
	return ok
}

// Append records n decoded audio bytes against a context. It returns false
// when the context is no longer available, in which case the audio must be
// discarded.
func (r *Registry) Append(id string, n int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	actx, ok := r.contexts[id]
	if !ok {
		return false
	}
	actx.bytes += int64(n)
	return true
}

// Elapsed returns how long a context has been live, or zero when the context
// is not available.
func (r *Registry) Elapsed(id string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if actx, ok := r.contexts[id]; ok {
		return time.Since(actx.created)
	}
	return 0
}

// Bytes returns the decoded audio byte count for a context, or zero when the
// context is not available.
func (r *Registry) Bytes(id string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if actx, ok := r.contexts[id]; ok {
		return actx.bytes
	}
	return 0
}
