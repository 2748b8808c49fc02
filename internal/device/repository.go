package device

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/gray-logic-specstore/internal/search"
	"github.com/nerrad567/gray-logic-specstore/internal/uid"
	"github.com/nerrad567/gray-logic-specstore/internal/widecolumn"
)

// DefaultTable is the store table holding specification and command rows.
const DefaultTable = "devices"

// Column qualifiers of the devices table.
var (
	colJSON           = []byte("json")
	colDeleted        = []byte("deleted")
	colCommandCounter = []byte("commandctr")
	colCreateClaim    = []byte("claim")

	deletedMarker = []byte{0x01}
)

// Repository defines the specification persistence operations.
type Repository interface {
	// Create stores a new specification.
//
// A caller-supplied token is bound through the registry (or reused if
// already bound); otherwise a fresh token is generated. The primary row is
// claimed with an atomic increment so that exactly one of several
// concurrent creates for a token succeeds, then written with the payload
// and the command counter at math.MaxInt64. A binding made by this call is
// released again if the row cannot be written.
func (r *StoreRepository) Create(ctx context.Context, req *CreateRequest) (spec *Specification, err error) {
	defer r.observe(OpCreate, time.Now(), &err)

	if err := ValidateCreateRequest(req); err != nil {
		return nil, err
	}

	token := req.Token
	var bound bool
	if token != "" {
		if _, bound, err = r.ids.Resolve(ctx, token); err != nil {
			return nil, r.storageErr("binding token", nil, err)
		}
	} else {
		if token, _, err = r.ids.CreateUniqueID(ctx); err != nil {
			return nil, r.storageErr("allocating token", nil, err)
		}
		bound = true
	}
	defer func() {
		if err != nil && bound && !errors.Is(err, ErrDuplicateToken) {
			r.releaseToken(ctx, token)
		}
	}()

	spec = specificationCreateLogic(req, token, ActorFromContext(ctx), r.now())

	id, ok, err := r.ids.GetValue(ctx, spec.Token)
	if err != nil {
		return nil, r.storageErr("resolving token", nil, err)
	}
	if !ok {
		return nil, invalidToken(spec.Token, nil)
	}

	payload, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encoding specification: %w", err)
	}

	primary := PrimaryRowKey(id)
	err = r.withTable(ctx, func(t widecolumn.Table) error {
		claim, err := t.Increment(ctx, primary, colCreateClaim, 1)
		if err != nil {
			return r.storageErr("claiming specification row", primary, err)
		}
		if claim != 1 {
			return duplicateToken(spec.Token)
		}
		err = t.Put(ctx, primary,
			widecolumn.Cell{Qualifier: colJSON, Value: payload},
			widecolumn.Cell{Qualifier: colCommandCounter, Value: widecolumn.EncodeCounter(math.MaxInt64)},
		)
		if err != nil {
			if delErr := t.Delete(ctx, primary); delErr != nil {
				r.logger.Warn("releasing specification row claim failed", "row", hex.EncodeToString(primary), "error", delErr)
			}
			return r.storageErr("writing specification", primary, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("specification created", "token", spec.Token, "id", id)
	r.publish(ctx, EventCreated, spec, false)
	return spec, nil
}

// releaseToken drops a registry binding made by a create that failed.
func (r *StoreRepository) releaseToken(ctx context.Context, token string) {
	if err := r.ids.Delete(ctx, token); err != nil {
		r.logger.Warn("releasing token after failed create", "token", token, "error", err)
	}
}

// GetByToken returns the stored specification for token.
func (r *StoreRepository) GetByToken(ctx context.Context, token string) (spec *Specification, err error) {
	defer r.observe(OpGet, time.Now(), &err)
	spec, _, err = r.load(ctx, token)
	return spec, err
}

// Assert returns the specification for token or an
// InvalidSpecificationToken error when it does not exist.
func (r *StoreRepository) Assert(ctx context.Context, token string) (*Specification, error) {
	spec, _, err := r.assert(ctx, token)
	return spec, err
}

// Update applies the fields present in req and rewrites the payload. The
// command counter and deletion marker are left untouched.
func (r *StoreRepository) Update(ctx context.Context, token string, req *CreateRequest) (spec *Specification, err error) {
	defer r.observe(OpUpdate, time.Now(), &err)

	if err := ValidateUpdateRequest(req); err != nil {
		return nil, err
	}
	spec, id, err := r.assert(ctx, token)
	if err != nil {
		return nil, err
	}
	specificationUpdateLogic(req, spec, ActorFromContext(ctx), r.now())

	if err := r.putJSON(ctx, PrimaryRowKey(id), spec); err != nil {
		return nil, err
	}
	r.logger.Info("specification updated", "token", token)
	r.publish(ctx, EventUpdated, spec, false)
	return spec, nil
}

// Delete soft-deletes the specification, or with force releases its token
// and removes its primary row. Command rows are left in place.
func (r *StoreRepository) Delete(ctx context.Context, token string, force bool) (spec *Specification, err error) {
	defer r.observe(OpDelete, time.Now(), &err)

	spec, id, err := r.assert(ctx, token)
	if err != nil {
		return nil, err
	}
	spec.Deleted = true
	primary := PrimaryRowKey(id)

	if force {
		if err := r.ids.Delete(ctx, token); err != nil {
			return nil, r.storageErr("releasing token", nil, err)
		}
		err = r.withTable(ctx, func(t widecolumn.Table) error {
			if err := t.Delete(ctx, primary); err != nil {
				return r.storageErr("deleting specification", primary, err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		r.logger.Info("specification removed", "token", token, "id", id)
	} else {
		setUpdatedMetadata(&spec.EntityInfo, ActorFromContext(ctx), r.now())
		payload, err := json.Marshal(spec)
		if err != nil {
			return nil, fmt.Errorf("encoding specification: %w", err)
		}
		err = r.withTable(ctx, func(t widecolumn.Table) error {
			err := t.Put(ctx, primary,
				widecolumn.Cell{Qualifier: colJSON, Value: payload},
				widecolumn.Cell{Qualifier: colDeleted, Value: deletedMarker},
			)
			if err != nil {
				return r.storageErr("marking specification deleted", primary, err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		r.logger.Info("specification marked deleted", "token", token)
	}

	r.publish(ctx, EventDeleted, spec, force)
	return spec, nil
}

// List scans every specification row, skipping command rows and, unless
// includeDeleted is set, rows carrying the deletion marker. The total
// counts every surviving row regardless of the page window.
func (r *StoreRepository) List(ctx context.Context, includeDeleted bool, criteria search.Criteria) (out search.Results[*Specification], err error) {
	defer r.observe(OpList, time.Now(), &err)

	pager := search.NewPager[[]byte](criteria)
	start, stop := SpecificationScanStart(), SpecificationScanStop()
	err = r.withTable(ctx, func(t widecolumn.Table) error {
		return widecolumn.WithScanner(ctx, t, start, stop, func(s widecolumn.Scanner) error {
			for s.Next() {
				res := s.Result()
				if !isPrimaryRow(res.Row) {
					continue
				}
				if !includeDeleted && res.Has(colDeleted) {
					continue
				}
				if payload := res.Value(colJSON); payload != nil {
					pager.Process(payload)
				}
			}
			if err := s.Err(); err != nil {
				return r.storageErr("scanning specifications", start, err)
			}
			return nil
		})
	})
	if err != nil {
		return search.Results[*Specification]{}, err
	}

	return search.Map(pager, decodeSpecification)
}

// load resolves token and reads the primary row.
func (r *StoreRepository) load(ctx context.Context, token string) (*Specification, uint64, error) {
	id, ok, err := r.ids.GetValue(ctx, token)
	if err != nil {
		return nil, 0, r.storageErr("resolving token", nil, err)
	}
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrSpecificationNotFound, token)
	}

	primary := PrimaryRowKey(id)
	var spec *Specification
	err = r.withTable(ctx, func(t widecolumn.Table) error {
		res, err := t.Get(ctx, primary, colJSON, colDeleted, colCommandCounter)
		if err != nil {
			return r.storageErr("reading specification", primary, err)
		}
		if res.IsEmpty() {
			return fmt.Errorf("%w: %q has no stored row", ErrSpecificationNotFound, token)
		}
		if n := res.Count(colJSON); n != 1 {
			return fmt.Errorf("%w: expected one JSON entry for specification %q and found %d", ErrIntegrity, token, n)
		}
		spec, err = decodeSpecification(res.Value(colJSON))
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return spec, id, nil
}

func (r *StoreRepository) assert(ctx context.Context, token string) (*Specification, uint64, error) {
	spec, id, err := r.load(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, 0, invalidToken(token, err)
	}
	return spec, id, err
}

// putJSON overwrites only the payload column of a primary row.
func (r *StoreRepository) putJSON(ctx context.Context, primary []byte, spec *Specification) error {
	payload, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encoding specification: %w", err)
	}
	return r.withTable(ctx, func(t widecolumn.Table) error {
		if err := t.Put(ctx, primary, widecolumn.Cell{Qualifier: colJSON, Value: payload}); err != nil {
			return r.storageErr("writing specification", primary, err)
		}
		return nil
	})
}

// withTable scopes one table handle. Acquire and release failures are
// reported as storage errors.
func (r *StoreRepository) withTable(ctx context.Context, fn func(widecolumn.Table) error) error {
	err := widecolumn.WithTable(ctx, r.client, r.table, fn)
	if err != nil {
		return r.storageErr("table access", nil, err)
	}
	return nil
}

// storageErr wraps store and registry failures with ErrStorage and logs
// them with the failing row. Domain errors pass through unchanged; a
// corrupt registry binding is an integrity violation.
func (r *StoreRepository) storageErr(op string, row []byte, err error) error {
	if isDomainErr(err) {
		return err
	}
	r.logger.Error("store operation failed", "op", op, "row", hex.EncodeToString(row), "error", err)
	kind := ErrStorage
	if errors.Is(err, uid.ErrCorrupt) {
		kind = ErrIntegrity
	}
	if row == nil {
		return fmt.Errorf("%w: %s: %w", kind, op, err)
	}
	return fmt.Errorf("%w: %s (row %x): %w", kind, op, row, err)
}

func isDomainErr(err error) bool {
	var derr *Error
	switch {
	case errors.As(err, &derr),
		errors.Is(err, ErrStorage),
		errors.Is(err, ErrIntegrity),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidSpecification),
		errors.Is(err, ErrInvalidCommand):
		return true
	}
	return false
}

func (r *StoreRepository) observe(op string, start time.Time, err *error) {
	r.observer.ObserveOperation(op, *err, time.Since(start))
}

func (r *StoreRepository) publish(ctx context.Context, typ EventType, spec *Specification, force bool) {
	ev := Event{
		Type:          typ,
		Token:         spec.Token,
		Actor:         ActorFromContext(ctx),
		Force:         force,
		Timestamp:     r.now(),
		Specification: spec.DeepCopy(),
	}
	if err := r.events.PublishSpecificationEvent(ctx, ev); err != nil {
		r.logger.Warn("publishing specification event failed", "token", spec.Token, "event", string(typ), "error", err)
	}
}

func decodeSpecification(payload []byte) (*Specification, error) {
	var spec Specification
	if err := json.Unmarshal(payload, &spec); err != nil {
		return nil, fmt.Errorf("%w: decoding specification: %v", ErrIntegrity, err)
	}
	return &spec, nil
}
