package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-specstore/internal/search"
	"github.com/nerrad567/gray-logic-specstore/internal/uid"
	"github.com/nerrad567/gray-logic-specstore/internal/widecolumn"
	"github.com/nerrad567/gray-logic-specstore/internal/widecolumn/memstore"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store *memstore.Store
	ids   *uid.Registry
	repo  *StoreRepository
}

// setupTestRepo builds a repository over an in-memory store with a fixed
// clock.
func setupTestRepo(t *testing.T, storeOpts []memstore.Option, opts ...Option) *testEnv {
	t.Helper()

	store := memstore.New(storeOpts...)
	t.Cleanup(func() {
		store.Close()
	})
	ids := uid.NewRegistry(store, "specification")
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return &testEnv{
		store: store,
		ids:   ids,
		repo:  NewStoreRepository(store, ids, opts...),
	}
}

func createSpec(t *testing.T, repo *StoreRepository, token, name string) *Specification {
	t.Helper()
	spec, err := repo.Create(context.Background(), &CreateRequest{Token: token, Name: name, AssetID: "asset-" + name})
	if err != nil {
		t.Fatalf("Create(%q) error = %v", token, err)
	}
	return spec
}

func assertNoLeaks(t *testing.T, store *memstore.Store) {
	t.Helper()
	if n := store.OpenHandles(); n != 0 {
		t.Errorf("OpenHandles() = %d, want 0", n)
	}
	if n := store.OpenScanners(); n != 0 {
		t.Errorf("OpenScanners() = %d, want 0", n)
	}
}

func TestSpecificationLifecycle(t *testing.T) {
	env := setupTestRepo(t, nil)
	ctx := context.Background()

	spec, err := env.repo.Create(ctx, &CreateRequest{Token: "spec-001", Name: "Thermostat", AssetID: "asset-42"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if spec.Deleted {
		t.Error("Deleted = true after create")
	}
	if spec.CreatedDate.IsZero() {
		t.Error("CreatedDate not set")
	}

	got, err := env.repo.GetByToken(ctx, "spec-001")
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if diff := cmp.Diff(spec, got); diff != "" {
		t.Errorf("GetByToken() mismatch (-created +got):\n%s", diff)
	}

	if _, err := env.repo.Delete(ctx, "spec-001", false); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	page, err := env.repo.List(ctx, false, search.All())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, s := range page.Results {
		if s.Token == "spec-001" {
			t.Error("soft-deleted specification returned by List")
		}
	}

	id, ok, err := env.ids.GetValue(ctx, "spec-001")
	if err != nil || !ok {
		t.Fatalf("GetValue() = %d, %v, %v", id, ok, err)
	}
	v1, err := env.repo.AllocateNextCommandID(ctx, id)
	if err != nil {
		t.Fatalf("AllocateNextCommandID() error = %v", err)
	}
	v2, err := env.repo.AllocateNextCommandID(ctx, id)
	if err != nil {
		t.Fatalf("AllocateNextCommandID() error = %v", err)
	}
	if v1 <= v2 {
		t.Errorf("allocations %d then %d, want strictly decreasing", v1, v2)
	}

	assertNoLeaks(t, env.store)
}

func TestCreate(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		env := setupTestRepo(t, nil)
		ctx := WithActor(context.Background(), "alice")

		req := &CreateRequest{
			Token:    "thermo",
			Name:     "Thermostat",
			AssetID:  "honeywell-t6",
			Metadata: map[string]string{"zone": "north"},
		}
		spec, err := env.repo.Create(ctx, req)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		want := &Specification{
			Token:    "thermo",
			Name:     "Thermostat",
			AssetID:  "honeywell-t6",
			Metadata: map[string]string{"zone": "north"},
			EntityInfo: EntityInfo{
				CreatedDate: testNow,
				CreatedBy:   "alice",
			},
		}
		if diff := cmp.Diff(want, spec); diff != "" {
			t.Errorf("Create() mismatch (-want +got):\n%s", diff)
		}

		got, err := env.repo.GetByToken(ctx, "thermo")
		if err != nil {
			t.Fatalf("GetByToken() error = %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("GetByToken() mismatch (-want +got):\n%s", diff)
		}

		req.Metadata["zone"] = "south"
		if spec.Metadata["zone"] != "north" {
			t.Error("created entity shares metadata with the request")
		}
	})

	t.Run("generated token", func(t *testing.T) {
		env := setupTestRepo(t, nil)
		ctx := context.Background()

		spec, err := env.repo.Create(ctx, &CreateRequest{Name: "Generated"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if spec.Token == "" {
			t.Fatal("Create() left token empty")
		}
		if _, err := env.repo.GetByToken(ctx, spec.Token); err != nil {
			t.Errorf("GetByToken(%q) error = %v", spec.Token, err)
		}
	})

	t.Run("duplicate token", func(t *testing.T) {
		env := setupTestRepo(t, nil)
		createSpec(t, env.repo, "dup", "First")

		_, err := env.repo.Create(context.Background(), &CreateRequest{Token: "dup", Name: "Second"})
		if !errors.Is(err, ErrDuplicateToken) {
			t.Fatalf("Create() error = %v, want ErrDuplicateToken", err)
		}
		var derr *Error
		if !errors.As(err, &derr) || derr.Code != DuplicateSpecificationToken || derr.Token != "dup" {
			t.Errorf("Create() error = %#v, want DuplicateSpecificationToken for dup", err)
		}

		got, err := env.repo.GetByToken(context.Background(), "dup")
		if err != nil {
			t.Fatalf("GetByToken() error = %v", err)
		}
		if got.Name != "First" {
			t.Errorf("Name = %q, duplicate create overwrote the stored entity", got.Name)
		}
	})

	t.Run("validation", func(t *testing.T) {
		env := setupTestRepo(t, nil)
		_, err := env.repo.Create(context.Background(), &CreateRequest{Token: "x", Name: "  "})
		if !errors.Is(err, ErrInvalidSpecification) {
			t.Errorf("Create() error = %v, want ErrInvalidSpecification", err)
		}
		if _, ok, _ := env.ids.GetValue(context.Background(), "x"); ok {
			t.Error("invalid request bound a token")
		}
	})

	t.Run("registry does not resolve token", func(t *testing.T) {
		store := memstore.New()
		t.Cleanup(func() { store.Close() })
		ids := &mockRegistry{Registry: uid.NewRegistry(store, "specification"), hideValues: true}
		repo := NewStoreRepository(store, ids)

		_, err := repo.Create(context.Background(), &CreateRequest{Token: "ghost", Name: "Ghost"})
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Create() error = %v, want ErrInvalidToken", err)
		}
	})
}

func TestCreateSameTokenConcurrently(t *testing.T) {
	for round := 0; round < 10; round++ {
		env := setupTestRepo(t, []memstore.Option{memstore.WithFault(func(op, _ string) error {
			if op == "get" {
				time.Sleep(time.Millisecond)
			}
			return nil
		})})
		ctx := context.Background()

		const workers = 4
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				_, errs[w] = env.repo.Create(ctx, &CreateRequest{Token: "spec-001", Name: fmt.Sprintf("Writer %d", w)})
			}(w)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case !errors.Is(err, ErrDuplicateToken):
				t.Errorf("round %d: Create() error = %v, want nil or ErrDuplicateToken", round, err)
			}
		}
		if succeeded != 1 {
			t.Errorf("round %d: %d creates succeeded, want 1", round, succeeded)
		}

		all, err := env.repo.List(ctx, true, search.All())
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if all.NumResults != 1 {
			t.Errorf("round %d: NumResults = %d, want 1", round, all.NumResults)
		}
		assertNoLeaks(t, env.store)
	}
}

func TestCreateFailureReleasesToken(t *testing.T) {
	for _, token := range []string{"named", ""} {
		name := token
		if name == "" {
			name = "generated"
		}
		t.Run(name, func(t *testing.T) {
			var (
				mu      sync.Mutex
				armed   = true
				putFail = errors.New("disk full")
			)
			env := setupTestRepo(t, []memstore.Option{memstore.WithFault(func(op, table string) error {
				mu.Lock()
				defer mu.Unlock()
				if armed && op == "put" && table == DefaultTable {
					return putFail
				}
				return nil
			})})
			ctx := context.Background()

			_, err := env.repo.Create(ctx, &CreateRequest{Token: token, Name: "Doomed"})
			if !errors.Is(err, ErrStorage) || !errors.Is(err, putFail) {
				t.Fatalf("Create() error = %v, want ErrStorage wrapping the write failure", err)
			}
			if token != "" {
				if _, ok, _ := env.ids.GetValue(ctx, token); ok {
					t.Errorf("token %q still bound after failed create", token)
				}
			}
			if _, ok, _ := env.ids.GetToken(ctx, 1); ok {
				t.Error("id 1 still bound after failed create")
			}

			mu.Lock()
			armed = false
			mu.Unlock()

			all, err := env.repo.List(ctx, true, search.All())
			if err != nil || all.NumResults != 0 {
				t.Errorf("List() = %d results, %v; want empty", all.NumResults, err)
			}
			if token != "" {
				if _, err := env.repo.Create(ctx, &CreateRequest{Token: token, Name: "Retried"}); err != nil {
					t.Errorf("Create() retry error = %v", err)
				}
			}
			assertNoLeaks(t, env.store)
		})
	}
}

func TestGetByToken(t *testing.T) {
	t.Run("unknown token", func(t *testing.T) {
		env := setupTestRepo(t, nil)
		_, err := env.repo.GetByToken(context.Background(), "nope")
		if !errors.Is(err, ErrSpecificationNotFound) || !errors.Is(err, ErrNotFound) {
			t.Errorf("GetByToken() error = %v, want ErrSpecificationNotFound", err)
		}
	})

	t.Run("binding without row", func(t *testing.T) {
		env := setupTestRepo(t, nil)
		if _, err := env.ids.UseExistingID(context.Background(), "orphan"); err != nil {
			t.Fatalf("UseExistingID() error = %v", err)
		}
		_, err := env.repo.GetByToken(context.Background(), "orphan")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetByToken() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("undecodable payload", func(t *testing.T) {
		env := setupTestRepo(t, nil)
		ctx := context.Background()
		id, err := env.ids.UseExistingID(ctx, "broken")
		if err != nil {
			t.Fatalf("UseExistingID() error = %v", err)
		}
		writeCells(t, env.store, PrimaryRowKey(id), widecolumn.Cell{Qualifier: colJSON, Value: []byte("{not json")})

		_, err = env.repo.GetByToken(ctx, "broken")
		if !errors.Is(err, ErrIntegrity) {
			t.Errorf("GetByToken() error = %v, want ErrIntegrity", err)
		}
	})

	t.Run("row without payload", func(t *testing.T) {
		env := setupTestRepo(t, nil)
		ctx := context.Background()
		id, err := env.ids.UseExistingID(ctx, "counter-only")
		if err != nil {
			t.Fatalf("UseExistingID() error = %v", err)
		}
		if _, err := env.repo.AllocateNextCommandID(ctx, id); err != nil {
			t.Fatalf("AllocateNextCommandID() error = %v", err)
		}

		_, err = env.repo.GetByToken(ctx, "counter-only")
		if !errors.Is(err, ErrIntegrity) {
			t.Errorf("GetByToken() error = %v, want ErrIntegrity", err)
		}
	})
}

func TestAssert(t *testing.T) {
	env := setupTestRepo(t, nil)
	createSpec(t, env.repo, "present", "Present")

	if _, err := env.repo.Assert(context.Background(), "present"); err != nil {
		t.Errorf("Assert(present) error = %v", err)
	}

	_, err := env.repo.Assert(context.Background(), "absent")
	var derr *Error
	if !errors.As(err, &derr) {
		t.Fatalf("Assert(absent) error = %v, want *Error", err)
	}
	if derr.Code != InvalidSpecificationToken || derr.Level != LevelError || derr.Token != "absent" {
		t.Errorf("Assert(absent) = %+v", derr)
	}
	if !errors.Is(err, ErrInvalidToken) || !errors.Is(err, ErrNotFound) {
		t.Errorf("Assert(absent) error = %v, want ErrInvalidToken wrapping ErrNotFound", err)
	}
}

func TestUpdate(t *testing.T) {
	env := setupTestRepo(t, nil)
	ctx := context.Background()
	createSpec(t, env.repo, "upd", "Original")

	id, _, _ := env.ids.GetValue(ctx, "upd")
	before, err := env.repo.AllocateNextCommandID(ctx, id)
	if err != nil {
		t.Fatalf("AllocateNextCommandID() error = %v", err)
	}

	updated, err := env.repo.Update(WithActor(ctx, "bob"), "upd", &CreateRequest{Name: "Renamed"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "Renamed" || updated.AssetID != "asset-Original" {
		t.Errorf("Update() = %+v, want name replaced and asset kept", updated)
	}
	if updated.UpdatedDate == nil || !updated.UpdatedDate.Equal(testNow) || updated.UpdatedBy != "bob" {
		t.Errorf("update audit = %v by %q", updated.UpdatedDate, updated.UpdatedBy)
	}

	got, err := env.repo.GetByToken(ctx, "upd")
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if diff := cmp.Diff(updated, got); diff != "" {
		t.Errorf("stored entity mismatch (-updated +got):\n%s", diff)
	}

	after, err := env.repo.AllocateNextCommandID(ctx, id)
	if err != nil {
		t.Fatalf("AllocateNextCommandID() error = %v", err)
	}
	if after != before-1 {
		t.Errorf("counter after update = %d, want %d", after, before-1)
	}

	if _, err := env.repo.Update(ctx, "missing", &CreateRequest{Name: "X"}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Update(missing) error = %v, want ErrInvalidToken", err)
	}
}

func TestDelete(t *testing.T) {
	t.Run("soft", func(t *testing.T) {
		env := setupTestRepo(t, nil)
		ctx := context.Background()
		createSpec(t, env.repo, "soft", "Soft")

		deleted, err := env.repo.Delete(ctx, "soft", false)
		if err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if !deleted.Deleted || deleted.UpdatedDate == nil {
			t.Errorf("Delete() = %+v, want deleted with update audit", deleted)
		}

		got, err := env.repo.GetByToken(ctx, "soft")
		if err != nil {
			t.Fatalf("GetByToken() error = %v", err)
		}
		if !got.Deleted {
			t.Error("stored entity not marked deleted")
		}

		all, err := env.repo.List(ctx, true, search.All())
		if err != nil {
			t.Fatalf("List(includeDeleted) error = %v", err)
		}
		if all.NumResults != 1 || all.Results[0].Token != "soft" {
			t.Errorf("List(includeDeleted) = %+v", all)
		}
	})

	t.Run("force", func(t *testing.T) {
		env := setupTestRepo(t, nil)
		ctx := context.Background()
		createSpec(t, env.repo, "hard", "Hard")

		if _, err := env.repo.Delete(ctx, "hard", true); err != nil {
			t.Fatalf("Delete(force) error = %v", err)
		}
		if _, err := env.repo.GetByToken(ctx, "hard"); !errors.Is(err, ErrSpecificationNotFound) {
			t.Errorf("GetByToken() after force delete error = %v", err)
		}
		if _, ok, _ := env.ids.GetValue(ctx, "hard"); ok {
			t.Error("token still bound after force delete")
		}
		all, err := env.repo.List(ctx, true, search.All())
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if all.NumResults != 0 {
			t.Errorf("List(includeDeleted).NumResults = %d, want 0", all.NumResults)
		}

		if _, err := env.repo.Delete(ctx, "hard", true); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("second Delete() error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("token reusable after force delete", func(t *testing.T) {
		env := setupTestRepo(t, nil)
		ctx := context.Background()
		createSpec(t, env.repo, "again", "First")
		if _, err := env.repo.Delete(ctx, "again", true); err != nil {
			t.Fatalf("Delete(force) error = %v", err)
		}
		spec := createSpec(t, env.repo, "again", "Second")
		if spec.Name != "Second" {
			t.Errorf("recreated Name = %q", spec.Name)
		}
	})
}

func TestList(t *testing.T) {
	env := setupTestRepo(t, nil)
	ctx := context.Background()

	for i := range 5 {
		createSpec(t, env.repo, fmt.Sprintf("spec-%d", i), fmt.Sprintf("Spec %d", i))
	}
	if _, err := env.repo.Delete(ctx, "spec-2", false); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := env.repo.CreateCommand(ctx, "spec-0", &CommandCreateRequest{Name: "reboot"}); err != nil {
		t.Fatalf("CreateCommand() error = %v", err)
	}

	tests := []struct {
		name           string
		includeDeleted bool
		criteria       search.Criteria
		wantTotal      int
		wantPage       int
	}{
		{"all live", false, search.All(), 4, 4},
		{"all with deleted", true, search.All(), 5, 5},
		{"first page", false, search.Criteria{PageNumber: 1, PageSize: 3}, 4, 3},
		{"last partial page", false, search.Criteria{PageNumber: 2, PageSize: 3}, 4, 1},
		{"past the end", false, search.Criteria{PageNumber: 3, PageSize: 3}, 4, 0},
		{"page zero is first page", true, search.Criteria{PageNumber: 0, PageSize: 2}, 5, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.repo.List(ctx, tt.includeDeleted, tt.criteria)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if got.NumResults != tt.wantTotal {
				t.Errorf("NumResults = %d, want %d", got.NumResults, tt.wantTotal)
			}
			if len(got.Results) != tt.wantPage {
				t.Errorf("len(Results) = %d, want %d", len(got.Results), tt.wantPage)
			}
			for _, s := range got.Results {
				if s.Deleted && !tt.includeDeleted {
					t.Errorf("deleted %q listed", s.Token)
				}
			}
		})
	}

	t.Run("pages partition the result", func(t *testing.T) {
		all, err := env.repo.List(ctx, true, search.All())
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		var paged []string
		for p := 1; p <= 3; p++ {
			page, err := env.repo.List(ctx, true, search.Criteria{PageNumber: p, PageSize: 2})
			if err != nil {
				t.Fatalf("List(page %d) error = %v", p, err)
			}
			for _, s := range page.Results {
				paged = append(paged, s.Token)
			}
		}
		var want []string
		for _, s := range all.Results {
			want = append(want, s.Token)
		}
		if diff := cmp.Diff(want, paged); diff != "" {
			t.Errorf("concatenated pages mismatch (-all +paged):\n%s", diff)
		}
	})

	assertNoLeaks(t, env.store)
}

func TestStorageFailures(t *testing.T) {
	tests := []struct {
		name string
		op   string
		run  func(*StoreRepository) error
	}{
		{"create put", "put", func(r *StoreRepository) error {
			_, err := r.Create(context.Background(), &CreateRequest{Name: "Fail"})
			return err
		}},
		{"get", "get", func(r *StoreRepository) error {
			_, err := r.GetByToken(context.Background(), "seed")
			return err
		}},
		{"list scan", "scan", func(r *StoreRepository) error {
			_, err := r.List(context.Background(), false, search.All())
			return err
		}},
		{"list iteration", "next", func(r *StoreRepository) error {
			_, err := r.List(context.Background(), false, search.All())
			return err
		}},
		{"allocate", "increment", func(r *StoreRepository) error {
			_, err := r.AllocateNextCommandID(context.Background(), 1)
			return err
		}},
		{"force delete", "delete", func(r *StoreRepository) error {
			_, err := r.Delete(context.Background(), "seed", true)
			return err
		}},
		{"table acquire", "table", func(r *StoreRepository) error {
			_, err := r.GetByToken(context.Background(), "seed")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var armed bool
			var mu sync.Mutex
			store := memstore.New(memstore.WithFault(func(op, table string) error {
				mu.Lock()
				defer mu.Unlock()
				if armed && table == DefaultTable && op == tt.op {
					return errors.New("injected")
				}
				return nil
			}))
			t.Cleanup(func() { store.Close() })
			repo := NewStoreRepository(store, uid.NewRegistry(store, "specification"))
			createSpec(t, repo, "seed", "Seed")

			mu.Lock()
			armed = true
			mu.Unlock()

			err := tt.run(repo)
			if !errors.Is(err, ErrStorage) {
				t.Errorf("error = %v, want ErrStorage", err)
			}
			if !errors.Is(err, widecolumn.ErrIO) {
				t.Errorf("error = %v, want wrapped widecolumn.ErrIO", err)
			}
			assertNoLeaks(t, store)
		})
	}

	t.Run("registry failure", func(t *testing.T) {
		store := memstore.New(memstore.WithFault(func(op, table string) error {
			if table == uid.DefaultTable && op == "increment" {
				return errors.New("injected")
			}
			return nil
		}))
		t.Cleanup(func() { store.Close() })
		repo := NewStoreRepository(store, uid.NewRegistry(store, "specification"))

		_, err := repo.Create(context.Background(), &CreateRequest{Name: "NoIDs"})
		if !errors.Is(err, ErrStorage) {
			t.Errorf("Create() error = %v, want ErrStorage", err)
		}
		assertNoLeaks(t, store)
	})
}

func TestEventsAndObservers(t *testing.T) {
	pub := &recordingPublisher{}
	obs := &recordingObserver{}
	env := setupTestRepo(t, nil, WithEventPublisher(pub), WithObserver(Observers{obs, nil}))
	ctx := WithActor(context.Background(), "carol")

	createSpec(t, env.repo, "ev", "Events")
	if _, err := env.repo.Update(ctx, "ev", &CreateRequest{AssetID: "new-asset"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := env.repo.Delete(ctx, "ev", true); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := env.repo.GetByToken(ctx, "ev"); err == nil {
		t.Fatal("GetByToken() after force delete succeeded")
	}

	wantEvents := []EventType{EventCreated, EventUpdated, EventDeleted}
	var gotEvents []EventType
	for _, ev := range pub.events {
		gotEvents = append(gotEvents, ev.Type)
		if ev.Token != "ev" || ev.Specification == nil || !ev.Timestamp.Equal(testNow) {
			t.Errorf("event %+v", ev)
		}
	}
	if diff := cmp.Diff(wantEvents, gotEvents); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if last := pub.events[2]; !last.Force || last.Actor != "carol" || !last.Specification.Deleted {
		t.Errorf("delete event = %+v", last)
	}
	if first := pub.events[0]; first.Actor != DefaultActor {
		t.Errorf("create event actor = %q, want %q", first.Actor, DefaultActor)
	}

	wantOps := []string{OpCreate, OpUpdate, OpDelete, OpGet}
	if diff := cmp.Diff(wantOps, obs.ops); diff != "" {
		t.Errorf("observed ops mismatch (-want +got):\n%s", diff)
	}
	if obs.errs[3] == nil {
		t.Error("failed GetByToken observed without error")
	}

	t.Run("publish failure does not fail the write", func(t *testing.T) {
		env := setupTestRepo(t, nil, WithEventPublisher(&recordingPublisher{err: errors.New("broker down")}))
		if _, err := env.repo.Create(context.Background(), &CreateRequest{Token: "quiet", Name: "Quiet"}); err != nil {
			t.Errorf("Create() error = %v", err)
		}
	})
}

// writeCells stores raw cells in the devices table.
func writeCells(t *testing.T, client widecolumn.Client, row []byte, cells ...widecolumn.Cell) {
	t.Helper()
	err := widecolumn.WithTable(context.Background(), client, DefaultTable, func(tbl widecolumn.Table) error {
		return tbl.Put(context.Background(), row, cells...)
	})
	if err != nil {
		t.Fatalf("writing cells: %v", err)
	}
}

// mockRegistry wraps a real registry, optionally hiding every binding from
// GetValue.
type mockRegistry struct {
	*uid.Registry
	hideValues bool
}

func (m *mockRegistry) GetValue(ctx context.Context, token string) (uint64, bool, error) {
	if m.hideValues {
		return 0, false, nil
	}
	return m.Registry.GetValue(ctx, token)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) PublishSpecificationEvent(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type recordingObserver struct {
	mu   sync.Mutex
	ops  []string
	errs []error
}

func (o *recordingObserver) ObserveOperation(op string, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, op)
	o.errs = append(o.errs, err)
}
