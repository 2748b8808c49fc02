package uid

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-specstore/internal/widecolumn"
)

const (
	// DefaultTable is the store table holding registry rows.
	DefaultTable = "uids"

	// MaxID is the largest id handed out by default.
	MaxID = math.MaxUint32

	// maxAllocAttempts bounds the search for an id with no reverse binding.
	maxAllocAttempts = 16

	// DefaultClaimTimeout is how long a caller waits for another caller's
	// claim on the same token to be bound.
	DefaultClaimTimeout = 5 * time.Second

	claimPollInterval = 2 * time.Millisecond

	forwardTag byte = 'F'
	reverseTag byte = 'R'
	counterTag byte = 'C'
	separator  byte = 0x00
)

var (
	colID      = []byte("id")
	colToken   = []byte("token")
	colCounter = []byte("counter")
	colClaim   = []byte("claim")
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures a Registry.
type Option func(*Registry)

// WithTable stores bindings in the named table instead of DefaultTable.
func WithTable(name string) Option {
	return func(r *Registry) {
		r.table = name
	}
}

// WithMaxID lowers the id ceiling.
func WithMaxID(maxID uint64) Option {
	return func(r *Registry) {
		r.maxID = maxID
	}
}

// WithClaimTimeout sets how long UseExistingID waits on a concurrent claim
// of the same token.
func WithClaimTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.claimTimeout = d
	}
}

// WithTokenGenerator replaces the random UUID token source.
func WithTokenGenerator(fn func() string) Option {
	return func(r *Registry) {
		r.newToken = fn
	}
}

// Registry is a bidirectional token to id store for one category.
//
// Lookups are served from a read-through cache. All public methods are
// safe for concurrent use.
type Registry struct {
	client   widecolumn.Client
	category string
	table    string
	maxID    uint64
	newToken func() string
	logger   Logger

	claimTimeout time.Duration

	cacheMu sync.RWMutex
	ids     map[string]uint64
	tokens  map[uint64]string
}

// NewRegistry creates a registry for category backed by client.
func NewRegistry(client widecolumn.Client, category string, opts ...Option) *Registry {
	r := &Registry{
		client:   client,
		category: category,
		table:    DefaultTable,
		maxID:    MaxID,
		newToken: uuid.NewString,

		claimTimeout: DefaultClaimTimeout,
		logger:   noopLogger{},
		ids:      make(map[string]uint64),
		tokens:   make(map[uint64]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Category returns the namespace this registry allocates in.
func (r *Registry) Category() string {
	return r.category
}

// CreateUniqueID binds a freshly generated token to a fresh id.
func (r *Registry) CreateUniqueID(ctx context.Context) (token string, id uint64, err error) {
	token = r.newToken()
	id, created, err := r.Resolve(ctx, token)
	if err != nil {
		return "", 0, err
	}
	if !created {
		return "", 0, fmt.Errorf("%w: generated token %q is already bound", ErrInvalidToken, token)
	}
	r.logger.Debug("surrogate id created", "category", r.category, "token", token, "id", id)
	return token, id, nil
}

// UseExistingID returns the id bound to token, binding a fresh id to it
// first if the token is not yet registered.
func (r *Registry) UseExistingID(ctx context.Context, token string) (uint64, error) {
	id, _, err := r.Resolve(ctx, token)
	return id, err
}

// Resolve is UseExistingID that also reports whether this call created the
// binding.
//
// Binding is serialised per token by an atomic claim counter on the
// forward row. The caller that raises it to 1 allocates and binds; every
// other caller waits until the binding is visible. A claimer that fails
// removes its claim so that waiters can take over.
func (r *Registry) Resolve(ctx context.Context, token string) (id uint64, created bool, err error) {
	if token == "" {
		return 0, false, ErrInvalidToken
	}
	if id, ok := r.cached(token); ok {
		return id, false, nil
	}

	err = widecolumn.WithTable(ctx, r.client, r.table, func(t widecolumn.Table) error {
		deadline := time.Now().Add(r.claimTimeout)
		for {
			fwd, err := r.forward(ctx, t, token)
			if err != nil {
				return err
			}
			if fwd.bound {
				id = fwd.id
				return nil
			}
			if !fwd.claimed {
				n, err := t.Increment(ctx, r.forwardRow(token), colClaim, 1)
				if err != nil {
					return widecolumn.IOError("claiming token", err)
				}
				if n == 1 {
					id, err = r.claimAndBind(ctx, t, token)
					created = err == nil
					return err
				}
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("%w: %q", ErrClaimPending, token)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(claimPollInterval):
			}
		}
	})
	if err != nil {
		return 0, false, err
	}
	r.remember(token, id)
	return id, created, nil
}

// claimAndBind allocates and binds an id for a token this caller has
// claimed. On failure the claim and any partial binding are removed.
func (r *Registry) claimAndBind(ctx context.Context, t widecolumn.Table, token string) (uint64, error) {
	id, err := r.allocate(ctx, t)
	if err == nil {
		err = r.bind(ctx, t, token, id)
	}
	if err != nil {
		r.release(ctx, t, token, id)
		return 0, err
	}
	return id, nil
}

// release removes a claim and, when id is set, its reverse row.
func (r *Registry) release(ctx context.Context, t widecolumn.Table, token string, id uint64) {
	if err := t.Delete(ctx, r.forwardRow(token)); err != nil {
		r.logger.Warn("releasing token claim failed", "category", r.category, "token", token, "error", err)
	}
	if id == 0 {
		return
	}
	if err := t.Delete(ctx, r.reverseRow(id)); err != nil {
		r.logger.Warn("releasing reverse binding failed", "category", r.category, "id", id, "error", err)
	}
}

// GetValue returns the id bound to token. A miss reports ok=false.
func (r *Registry) GetValue(ctx context.Context, token string) (id uint64, ok bool, err error) {
	if token == "" {
		return 0, false, nil
	}
	if id, ok := r.cached(token); ok {
		return id, true, nil
	}

	err = widecolumn.WithTable(ctx, r.client, r.table, func(t widecolumn.Table) error {
		id, ok, err = r.lookup(ctx, t, token)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	if ok {
		r.remember(token, id)
	}
	return id, ok, nil
}

// GetToken returns the token bound to id. A miss reports ok=false.
func (r *Registry) GetToken(ctx context.Context, id uint64) (token string, ok bool, err error) {
	r.cacheMu.RLock()
	token, ok = r.tokens[id]
	r.cacheMu.RUnlock()
	if ok {
		return token, true, nil
	}

	err = widecolumn.WithTable(ctx, r.client, r.table, func(t widecolumn.Table) error {
		res, err := t.Get(ctx, r.reverseRow(id), colToken)
		if err != nil {
			return widecolumn.IOError("reading reverse binding", err)
		}
		if res.Has(colToken) {
			token, ok = string(res.Value(colToken)), true
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	if ok {
		r.remember(token, id)
	}
	return token, ok, nil
}

// Delete removes both directions of the binding for token. The id is not
// returned to the pool. A claim left by a caller that never bound is
// cleared as well.
func (r *Registry) Delete(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	var id uint64
	err := widecolumn.WithTable(ctx, r.client, r.table, func(t widecolumn.Table) error {
		st, err := r.forward(ctx, t, token)
		if err != nil {
			return err
		}
		if !st.bound {
			if !st.claimed {
				return fmt.Errorf("%w: %q", ErrNotFound, token)
			}
			// Claimed but never bound: drop the claim so the token can be reused.
			if err := t.Delete(ctx, r.forwardRow(token)); err != nil {
				return widecolumn.IOError("deleting stale claim", err)
			}
			r.logger.Warn("stale token claim cleared", "category", r.category, "token", token)
			return nil
		}
		id = st.id
		if err := t.Delete(ctx, r.forwardRow(token)); err != nil {
			return widecolumn.IOError("deleting forward binding", err)
		}
		if err := t.Delete(ctx, r.reverseRow(id)); err != nil {
			return widecolumn.IOError("deleting reverse binding", err)
		}
		return nil
	})

	r.cacheMu.Lock()
	delete(r.ids, token)
	if err == nil {
		delete(r.tokens, id)
	}
	r.cacheMu.Unlock()

	if err != nil {
		return err
	}
	if id != 0 {
		r.logger.Debug("surrogate id released", "category", r.category, "token", token, "id", id)
	}
	return nil
}

// allocate draws ids from the category counter until one without a
// reverse binding is found.
func (r *Registry) allocate(ctx context.Context, t widecolumn.Table) (uint64, error) {
	for attempt := 0; attempt < maxAllocAttempts; attempt++ {
		n, err := t.Increment(ctx, r.counterRow(), colCounter, 1)
		if err != nil {
			return 0, widecolumn.IOError("advancing id counter", err)
		}
		if n <= 0 || uint64(n) > r.maxID {
			return 0, fmt.Errorf("%w: category %q reached %d", ErrCapacityExceeded, r.category, n)
		}
		id := uint64(n)

		res, err := t.Get(ctx, r.reverseRow(id), colToken)
		if err != nil {
			return 0, widecolumn.IOError("checking reverse binding", err)
		}
		if res.IsEmpty() {
			return id, nil
		}
		r.logger.Warn("skipping id with existing binding", "category", r.category, "id", id)
	}
	return 0, fmt.Errorf("no free id in category %q after %d attempts", r.category, maxAllocAttempts)
}

// bind writes the reverse row before the forward row so that a visible
// forward binding always has its inverse.
func (r *Registry) bind(ctx context.Context, t widecolumn.Table, token string, id uint64) error {
	if err := t.Put(ctx, r.reverseRow(id), widecolumn.Cell{Qualifier: colToken, Value: []byte(token)}); err != nil {
		return widecolumn.IOError("writing reverse binding", err)
	}
	if err := t.Put(ctx, r.forwardRow(token), widecolumn.Cell{Qualifier: colID, Value: encodeID(id)}); err != nil {
		return widecolumn.IOError("writing forward binding", err)
	}
	return nil
}

// forwardState is the decoded forward row of a token.
type forwardState struct {
	id      uint64
	bound   bool
	claimed bool
}

func (r *Registry) forward(ctx context.Context, t widecolumn.Table, token string) (forwardState, error) {
	res, err := t.Get(ctx, r.forwardRow(token), colID, colClaim)
	if err != nil {
		return forwardState{}, widecolumn.IOError("reading forward binding", err)
	}
	st := forwardState{claimed: res.Has(colClaim)}
	if !res.Has(colID) {
		return st, nil
	}
	raw := res.Value(colID)
	if len(raw) != 8 {
		return forwardState{}, fmt.Errorf("%w: token %q has %d-byte id", ErrCorrupt, token, len(raw))
	}
	st.id, st.bound = binary.BigEndian.Uint64(raw), true
	return st, nil
}

func (r *Registry) lookup(ctx context.Context, t widecolumn.Table, token string) (uint64, bool, error) {
	st, err := r.forward(ctx, t, token)
	return st.id, st.bound, err
}

func (r *Registry) cached(token string) (uint64, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	id, ok := r.ids[token]
	return id, ok
}

func (r *Registry) remember(token string, id uint64) {
	r.cacheMu.Lock()
	r.ids[token] = id
	r.tokens[id] = token
	r.cacheMu.Unlock()
}

func (r *Registry) forwardRow(token string) []byte {
	return r.row(forwardTag, []byte(token))
}

func (r *Registry) reverseRow(id uint64) []byte {
	return r.row(reverseTag, encodeID(id))
}

func (r *Registry) counterRow() []byte {
	return append([]byte{counterTag}, r.category...)
}

func (r *Registry) row(tag byte, suffix []byte) []byte {
	b := make([]byte, 0, 2+len(r.category)+len(suffix))
	b = append(b, tag)
	b = append(b, r.category...)
	b = append(b, separator)
	return append(b, suffix...)
}

func encodeID(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}
