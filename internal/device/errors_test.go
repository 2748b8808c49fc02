package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestStructuredError(t *testing.T) {
	cause := fmt.Errorf("%w: %q", ErrSpecificationNotFound, "abc")
	err := invalidToken("abc", cause)

	if !errors.Is(err, ErrInvalidToken) {
		t.Error("invalid token error does not match ErrInvalidToken")
	}
	if errors.Is(err, ErrDuplicateToken) {
		t.Error("invalid token error matches ErrDuplicateToken")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("cause not reachable through Unwrap")
	}
	msg := err.Error()
	for _, part := range []string{string(InvalidSpecificationToken), string(LevelError), `"abc"`} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() = %q, missing %q", msg, part)
		}
	}

	dup := duplicateToken("abc")
	if !errors.Is(dup, ErrDuplicateToken) || errors.Is(dup, ErrInvalidToken) {
		t.Errorf("duplicate token error matching is wrong: %v", dup)
	}
	if !errors.Is(fmt.Errorf("creating: %w", dup), ErrDuplicateToken) {
		t.Error("wrapped structured error does not match")
	}
}

func TestActorFromContext(t *testing.T) {
	ctx := context.Background()
	if got := ActorFromContext(ctx); got != DefaultActor {
		t.Errorf("ActorFromContext(empty) = %q, want %q", got, DefaultActor)
	}
	if got := ActorFromContext(WithActor(ctx, "erin")); got != "erin" {
		t.Errorf("ActorFromContext() = %q, want erin", got)
	}
	if got := ActorFromContext(WithActor(ctx, "")); got != DefaultActor {
		t.Errorf("ActorFromContext(blank) = %q, want %q", got, DefaultActor)
	}
}

func TestSpecificationDeepCopy(t *testing.T) {
	updated := time.Now()
	orig := &Specification{
		Token:      "s",
		Metadata:   map[string]string{"a": "1"},
		EntityInfo: EntityInfo{UpdatedDate: &updated},
	}
	cpy := orig.DeepCopy()
	cpy.Metadata["a"] = "2"
	*cpy.UpdatedDate = updated.Add(time.Hour)

	if orig.Metadata["a"] != "1" {
		t.Error("DeepCopy shares metadata")
	}
	if !orig.UpdatedDate.Equal(updated) {
		t.Error("DeepCopy shares UpdatedDate")
	}
	if (*Specification)(nil).DeepCopy() != nil {
		t.Error("nil DeepCopy not nil")
	}
}

func TestUpdateLogicKeepsUnsetFields(t *testing.T) {
	spec := specificationCreateLogic(&CreateRequest{Name: "A", AssetID: "x", Metadata: map[string]string{"k": "v"}}, "t", "sys", testNow)

	later := testNow.Add(time.Minute)
	specificationUpdateLogic(&CreateRequest{}, spec, "bob", later)

	if spec.Name != "A" || spec.AssetID != "x" || spec.Metadata["k"] != "v" {
		t.Errorf("empty update changed fields: %+v", spec)
	}
	if spec.UpdatedBy != "bob" || !spec.UpdatedDate.Equal(later) {
		t.Errorf("update audit = %v by %q", spec.UpdatedDate, spec.UpdatedBy)
	}
	if !spec.CreatedDate.Equal(testNow) || spec.CreatedBy != "sys" {
		t.Errorf("create audit changed: %v by %q", spec.CreatedDate, spec.CreatedBy)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{duplicateToken("a"), "duplicate"},
		{invalidToken("a", nil), "not_found"},
		{fmt.Errorf("%w: x", ErrSpecificationNotFound), "not_found"},
		{fmt.Errorf("%w: %w", ErrInvalidSpecification, ErrInvalidName), "invalid"},
		{fmt.Errorf("%w: bad json", ErrIntegrity), "integrity"},
		{fmt.Errorf("%w: get: disk", ErrStorage), "storage"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
