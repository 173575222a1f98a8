package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/groundkit/groundkit/internal/domain"
)

func newTestSource(t *testing.T, id string) domain.Source {
	t.Helper()
	src, err := domain.NewSource(id, domain.OriginUpload, "Runbook", "data/uploads/"+id+".pdf")
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	src.RefreshEvery = 30 * time.Minute
	return src
}

func TestCreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := New(newMemStore())

	src := newTestSource(t, "src-1")
	if err := repo.Create(ctx, &src); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Get(ctx, "src-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != src.ID || got.Origin != src.Origin || got.Title != src.Title {
		t.Errorf("got %+v, want identity fields of %+v", got, src)
	}
	if got.ContentRef != src.ContentRef {
		t.Errorf("ContentRef = %q, want %q", got.ContentRef, src.ContentRef)
	}
	if got.Status != domain.StatePending {
		t.Errorf("Status = %s, want %s", got.Status, domain.StatePending)
	}
	if got.RefreshEvery != 30*time.Minute {
		t.Errorf("RefreshEvery = %v, want 30m", got.RefreshEvery)
	}
	if !got.CreatedAt.Equal(src.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, src.CreatedAt)
	}
}

func TestGetMissingSource(t *testing.T) {
	repo := New(newMemStore())

	_, err := repo.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrSourceNotFound) {
		t.Fatalf("err = %v, want ErrSourceNotFound", err)
	}
}

func TestCreateRecordsPendingTimestamp(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	repo := New(store)

	src := newTestSource(t, "src-1")
	if err := repo.Create(ctx, &src); err != nil {
		t.Fatalf("Create: %v", err)
	}

	row := store.rows[keyPrefix+"src-1"]
	if row["ts_pending"] == "" {
		t.Error("ts_pending not recorded on create")
	}
}

func TestUpdateStateRecordsTransition(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	repo := New(store)

	src := newTestSource(t, "src-1")
	if err := repo.Create(ctx, &src); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.UpdateState(ctx, "src-1", domain.StateFetching, ""); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	got, err := repo.Get(ctx, "src-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StateFetching {
		t.Errorf("Status = %s, want %s", got.Status, domain.StateFetching)
	}
	if store.rows[keyPrefix+"src-1"]["ts_fetching"] == "" {
		t.Error("ts_fetching not recorded")
	}
}

func TestUpdateStateRecordsFailureCause(t *testing.T) {
	ctx := context.Background()
	repo := New(newMemStore())

	src := newTestSource(t, "src-1")
	if err := repo.Create(ctx, &src); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.UpdateState(ctx, "src-1", domain.StateFailed, "embedding provider down"); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	got, err := repo.Get(ctx, "src-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StateFailed {
		t.Errorf("Status = %s, want %s", got.Status, domain.StateFailed)
	}
	if got.Error != "embedding provider down" {
		t.Errorf("Error = %q, want failure cause", got.Error)
	}
}

func TestSetCountsAndGeneration(t *testing.T) {
	ctx := context.Background()
	repo := New(newMemStore())

	src := newTestSource(t, "src-1")
	if err := repo.Create(ctx, &src); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.SetCounts(ctx, "src-1", 42, 40, 2); err != nil {
		t.Fatalf("SetCounts: %v", err)
	}
	if err := repo.SetGeneration(ctx, "src-1", 1700000000000); err != nil {
		t.Fatalf("SetGeneration: %v", err)
	}

	got, err := repo.Get(ctx, "src-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ChunkCount != 42 || got.EmbeddingCount != 40 || got.FallbackCount != 2 {
		t.Errorf("counts = %d/%d/%d, want 42/40/2",
			got.ChunkCount, got.EmbeddingCount, got.FallbackCount)
	}
	if got.Generation != 1700000000000 {
		t.Errorf("Generation = %d, want 1700000000000", got.Generation)
	}
}

func TestDeleteSource(t *testing.T) {
	ctx := context.Background()
	repo := New(newMemStore())

	src := newTestSource(t, "src-1")
	if err := repo.Create(ctx, &src); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Delete(ctx, "src-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "src-1"); !errors.Is(err, domain.ErrSourceNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrSourceNotFound", err)
	}
}

func TestDeleteMissingSource(t *testing.T) {
	repo := New(newMemStore())

	err := repo.Delete(context.Background(), "nope")
	if !errors.Is(err, domain.ErrSourceNotFound) {
		t.Fatalf("err = %v, want ErrSourceNotFound", err)
	}
}

func TestListSources(t *testing.T) {
	ctx := context.Background()
	repo := New(newMemStore())

	for _, id := range []string{"src-1", "src-2", "src-3"} {
		src := newTestSource(t, id)
		if err := repo.Create(ctx, &src); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List returned %d sources, want 3", len(got))
	}
	seen := make(map[string]bool)
	for _, s := range got {
		seen[s.ID] = true
	}
	for _, id := range []string{"src-1", "src-2", "src-3"} {
		if !seen[id] {
			t.Errorf("List missing %s", id)
		}
	}
}

func TestListEmpty(t *testing.T) {
	repo := New(newMemStore())

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("List returned %d sources, want 0", len(got))
	}
}
