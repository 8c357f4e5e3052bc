package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/okian/akut/internal/domain/model"
)

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testRun(id, owner, session, caseID string, score float64, minute int) model.Run {
	return model.Run{
		RunID:     id,
		OwnerID:   owner,
		SessionID: session,
		CaseID:    caseID,
		Summary:   model.Summary{Score: score},
		CreatedAt: baseTime.Add(time.Duration(minute) * time.Minute),
	}
}

func newTestStore(t *testing.T) *TreapStore {
	t.Helper()
	s := NewTreapStore(context.Background(), WithMetricsUpdateInterval(time.Hour))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// checkTreap verifies BST order, heap order and subtree sizes.
func checkTreap(t *testing.T, n *node) int {
	t.Helper()
	if n == nil {
		return 0
	}
	if n.left != nil {
		if !less(n.left.score, n.left.id, n.score, n.id) {
			t.Fatalf("bst order violated at %s", n.id)
		}
		if n.left.prio > n.prio {
			t.Fatalf("heap order violated at %s", n.id)
		}
	}
	if n.right != nil {
		if less(n.right.score, n.right.id, n.score, n.id) {
			t.Fatalf("bst order violated at %s", n.id)
		}
		if n.right.prio > n.prio {
			t.Fatalf("heap order violated at %s", n.id)
		}
	}
	size := 1 + checkTreap(t, n.left) + checkTreap(t, n.right)
	if size != n.size {
		t.Fatalf("size of %s is %d, want %d", n.id, n.size, size)
	}
	return size
}

func TestTreapStore_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Save(ctx, testRun("r1", "u1", "s1", "aks", 80, 0)); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CaseID != "aks" || got.Summary.Score != 80 {
		t.Fatalf("unexpected run: %+v", got)
	}
	if s.Count(ctx) != 1 {
		t.Fatalf("count = %d, want 1", s.Count(ctx))
	}

	if err := s.Delete(ctx, "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "r1"); err != nil {
		t.Fatalf("deleting a missing run should succeed, got %v", err)
	}
	if s.root != nil {
		t.Fatal("treap should be empty")
	}
}

func TestTreapStore_SaveRejectsEmptyID(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(context.Background(), model.Run{}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestTreapStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_ = s.Save(ctx, testRun("r1", "u1", "s1", "aks", 10, 0))
	_ = s.Save(ctx, testRun("r2", "u1", "s1", "aks", 50, 1))
	_ = s.Save(ctx, testRun("r1", "u2", "s2", "aks", 90, 2))

	if s.Count(ctx) != 2 {
		t.Fatalf("count = %d, want 2", s.Count(ctx))
	}
	top, _ := s.TopN(ctx, "", 10)
	if top[0].RunID != "r1" || top[0].Score != 90 {
		t.Fatalf("replaced run should lead, got %+v", top[0])
	}
	byOld, _ := s.ListByOwner(ctx, "u1", 10)
	if len(byOld) != 1 || byOld[0].RunID != "r2" {
		t.Fatalf("owner index not updated: %+v", byOld)
	}
	checkTreap(t, s.root)
}

func TestTreapStore_TopNOrderingAndTies(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_ = s.Save(ctx, testRun("b", "u", "", "aks", 75, 0))
	_ = s.Save(ctx, testRun("a", "u", "", "aks", 75, 1))
	_ = s.Save(ctx, testRun("c", "u", "", "aks", 100, 2))
	_ = s.Save(ctx, testRun("d", "u", "", "aks", 50, 3))
	_ = s.Save(ctx, testRun("e", "u", "", "hypo", 99, 4))

	top, err := s.TopN(ctx, "aks", 10)
	if err != nil {
		t.Fatalf("topn: %v", err)
	}
	want := []struct {
		id   string
		rank int
	}{{"c", 1}, {"a", 2}, {"b", 2}, {"d", 3}}
	if len(top) != len(want) {
		t.Fatalf("got %d entries, want %d", len(top), len(want))
	}
	for i, w := range want {
		if top[i].RunID != w.id || top[i].Rank != w.rank {
			t.Fatalf("entry %d = %s/rank %d, want %s/rank %d", i, top[i].RunID, top[i].Rank, w.id, w.rank)
		}
	}

	all, _ := s.TopN(ctx, "", 2)
	if len(all) != 2 || all[0].RunID != "c" || all[1].RunID != "e" {
		t.Fatalf("unexpected global top: %+v", all)
	}

	if _, err := s.TopN(ctx, "", 0); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestTreapStore_Lists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_ = s.Save(ctx, testRun("r1", "u1", "s1", "aks", 10, 0))
	_ = s.Save(ctx, testRun("r2", "u1", "s1", "aks", 20, 5))
	_ = s.Save(ctx, testRun("r3", "u1", "s2", "aks", 30, 10))
	_ = s.Save(ctx, testRun("r4", "u2", "s1", "aks", 40, 15))

	owned, err := s.ListByOwner(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(owned) != 2 || owned[0].RunID != "r3" || owned[1].RunID != "r2" {
		t.Fatalf("owner list should be newest first and limited: %+v", owned)
	}

	session, _ := s.ListBySession(ctx, "s1")
	ids := make([]string, len(session))
	for i, r := range session {
		ids[i] = r.RunID
	}
	if fmt.Sprint(ids) != "[r4 r2 r1]" {
		t.Fatalf("session list = %v", ids)
	}

	if _, err := s.ListByOwner(ctx, "u1", 0); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
	none, _ := s.ListBySession(ctx, "missing")
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", none)
	}
}

func TestTreapStore_RandomizedAgainstSort(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	rng := rand.New(rand.NewSource(7))

	scores := map[string]float64{}
	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("run-%03d", rng.Intn(200))
		if rng.Intn(5) == 0 {
			_ = s.Delete(ctx, id)
			delete(scores, id)
			continue
		}
		score := float64(rng.Intn(21) * 5)
		_ = s.Save(ctx, testRun(id, "u", "", "aks", score, i))
		scores[id] = score
	}
	checkTreap(t, s.root)

	type kv struct {
		id    string
		score float64
	}
	var want []kv
	for id, sc := range scores {
		want = append(want, kv{id, sc})
	}
	sort.Slice(want, func(i, j int) bool {
		if want[i].score != want[j].score {
			return want[i].score > want[j].score
		}
		return want[i].id < want[j].id
	})

	got, _ := s.TopN(ctx, "", len(want)+10)
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].RunID != want[i].id || got[i].Score != want[i].score {
			t.Fatalf("entry %d = %s/%v, want %s/%v", i, got[i].RunID, got[i].Score, want[i].id, want[i].score)
		}
	}
}

func TestTreapStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("g%d-%d", g, i)
				_ = s.Save(ctx, testRun(id, fmt.Sprintf("u%d", g), "", "aks", float64(i), i))
				_, _ = s.TopN(ctx, "aks", 5)
			}
		}(g)
	}
	wg.Wait()

	if s.Count(ctx) != 400 {
		t.Fatalf("count = %d, want 400", s.Count(ctx))
	}
	checkTreap(t, s.root)
}

func TestAssignRanksWithTies(t *testing.T) {
	entries := []Entry{{Score: 9}, {Score: 9}, {Score: 8}, {Score: 7}, {Score: 7}}
	assignRanksWithTies(entries)
	want := []int{1, 1, 2, 3, 3}
	for i, e := range entries {
		if e.Rank != want[i] {
			t.Fatalf("rank %d = %d, want %d", i, e.Rank, want[i])
		}
	}
}
