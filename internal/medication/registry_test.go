package medication

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/starford/dosewise/internal/models"
	"github.com/starford/dosewise/internal/storage"
)

const key = "app_medications"

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	return NewRegistry(context.Background(), mem, key, opts...), mem
}

func aspirin() models.MedicationInput {
	return models.MedicationInput{
		Name: "Aspirin", Dosage: "81mg", Frequency: models.FrequencyOnceDaily,
		Schedule: "08:00", Color: models.ColorWhite,
	}
}

func TestAdd_UniqueIDs(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		m, err := r.Add(ctx, aspirin())
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if m.ID == "" || seen[m.ID] {
			t.Fatalf("duplicate or empty id %q", m.ID)
		}
		seen[m.ID] = true
	}
	if len(r.List()) != 50 {
		t.Errorf("List len = %d", len(r.List()))
	}
}

func TestAdd_RetriesOnCollision(t *testing.T) {
	ids := []string{"a", "a", "b"}
	n := 0
	r, _ := newTestRegistry(t, WithIDGenerator(func() string {
		id := ids[n]
		n++
		return id
	}))
	ctx := context.Background()
	first, _ := r.Add(ctx, aspirin())
	second, _ := r.Add(ctx, aspirin())
	if first.ID != "a" || second.ID != "b" {
		t.Errorf("ids = %q, %q", first.ID, second.ID)
	}
}

func TestAdd_SetsCreatedAtAndPersists(t *testing.T) {
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	r, mem := newTestRegistry(t, WithClock(func() time.Time { return at }))
	ctx := context.Background()

	m, err := r.Add(ctx, aspirin())
	if err != nil {
		t.Fatal(err)
	}
	if !m.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v", m.CreatedAt)
	}

	reopened := NewRegistry(ctx, mem, key)
	got, ok := reopened.Get(m.ID)
	if !ok || got.Name != "Aspirin" {
		t.Errorf("not persisted: %+v %v", got, ok)
	}
}

func TestUpdate_MergesAndPreservesIdentity(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	m, _ := r.Add(ctx, aspirin())

	dosage := "325mg"
	if err := r.Update(ctx, m.ID, models.MedicationPatch{Dosage: &dosage}); err != nil {
		t.Fatal(err)
	}
	got, _ := r.Get(m.ID)
	if got.Dosage != "325mg" || got.Name != "Aspirin" || got.Schedule != "08:00" {
		t.Errorf("merge wrong: %+v", got)
	}
	if got.ID != m.ID || !got.CreatedAt.Equal(m.CreatedAt) {
		t.Errorf("identity changed: %+v", got)
	}
}

func TestUpdateDelete_UnknownIDNoOp(t *testing.T) {
	r, mem := newTestRegistry(t)
	ctx := context.Background()
	_, _ = r.Add(ctx, aspirin())
	before, _ := mem.Load(ctx, key)

	name := "X"
	if err := r.Update(ctx, "missing", models.MedicationPatch{Name: &name}); err != nil {
		t.Errorf("Update: %v", err)
	}
	if err := r.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete: %v", err)
	}
	after, _ := mem.Load(ctx, key)
	if string(before) != string(after) {
		t.Error("collection changed on unknown id")
	}
	if len(r.List()) != 1 {
		t.Errorf("len = %d", len(r.List()))
	}
}

func TestDelete_Removes(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	a, _ := r.Add(ctx, aspirin())
	b, _ := r.Add(ctx, models.MedicationInput{Name: "Ibuprofen", Dosage: "200mg"})

	if err := r.Delete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	list := r.List()
	if len(list) != 1 || list[0].ID != b.ID {
		t.Errorf("List = %+v", list)
	}
	if _, ok := r.Get(a.ID); ok {
		t.Error("deleted medication still returned")
	}
}

type brokenBackend struct{ *storage.Memory }

func (brokenBackend) Save(context.Context, string, []byte) error { return errors.New("read-only") }

func TestAdd_PersistFailureLeavesStateUntouched(t *testing.T) {
	r := NewRegistry(context.Background(), brokenBackend{storage.NewMemory()}, key)
	if _, err := r.Add(context.Background(), aspirin()); err == nil {
		t.Fatal("expected error")
	}
	if len(r.List()) != 0 {
		t.Error("failed add must not be visible")
	}
}

func TestOnChange_FiresAfterMutationAndReload(t *testing.T) {
	r, mem := newTestRegistry(t)
	ctx := context.Background()
	var calls []int
	r.OnChange(func(meds []models.Medication) { calls = append(calls, len(meds)) })

	m, _ := r.Add(ctx, aspirin())
	_ = r.Delete(ctx, "missing")
	_ = r.Delete(ctx, m.ID)

	_ = mem.Save(ctx, key, []byte(`[{"id":"x","name":"Metformin","dosage":"500mg"}]`))
	r.Reload(ctx)

	if fmt.Sprint(calls) != "[1 0 1]" {
		t.Errorf("calls = %v", calls)
	}
	if got, ok := r.Get("x"); !ok || got.Name != "Metformin" {
		t.Errorf("reload missed record: %+v", got)
	}
}

func TestNewRegistry_CorruptDocument(t *testing.T) {
	mem := storage.NewMemory()
	_ = mem.Save(context.Background(), key, []byte("not json"))
	r := NewRegistry(context.Background(), mem, key)
	if len(r.List()) != 0 {
		t.Error("corrupt document should load as empty")
	}
}

func TestOnChange_DeliversSnapshotsInCommitOrder(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	var mu sync.Mutex
	var last []models.Medication
	r.OnChange(func(meds []models.Medication) {
		// Stand-in for a slow subscriber such as the reminder recompute.
		time.Sleep(time.Duration(rand.Intn(200)) * time.Microsecond)
		mu.Lock()
		last = meds
		mu.Unlock()
	})

	for round := 0; round < 20; round++ {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				m, err := r.Add(ctx, aspirin())
				if err != nil {
					t.Error(err)
					return
				}
				if i%2 == 0 {
					_ = r.Delete(ctx, m.ID)
				}
			}(i)
		}
		wg.Wait()

		mu.Lock()
		got := last
		mu.Unlock()
		if want := r.List(); !reflect.DeepEqual(got, want) {
			t.Fatalf("round %d: last delivered snapshot has %d medications, registry has %d",
				round, len(got), len(want))
		}
	}
}

func TestReload_ConcurrentAddIsNotLost(t *testing.T) {
	r, mem := newTestRegistry(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := r.Add(ctx, aspirin()); err != nil {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			r.Reload(ctx)
		}()
	}
	wg.Wait()

	if n := len(r.List()); n != 30 {
		t.Errorf("in memory = %d, want 30", n)
	}
	if n := len(storage.Get(ctx, mem, key, []models.Medication{}, nil)); n != 30 {
		t.Errorf("stored = %d, want 30", n)
	}
}
