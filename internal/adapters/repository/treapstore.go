package repository

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then runID ASC (deterministic). "less" means ranks
// earlier, so in-order traversal yields the leaderboard from best to worst.

// scoreScale controls fixed-point scaling from float64. Scores are 0-100.
const scoreScale = 1_000_000_000

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	switch {
	case math.IsNaN(x):
		return 0
	case x*scoreScale >= math.MaxInt64:
		return scoreFP(math.MaxInt64)
	case x*scoreScale <= math.MinInt64:
		return scoreFP(math.MinInt64)
	}
	return scoreFP(math.Round(x * scoreScale))
}

type node struct {
	id    string
	score scoreFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) ranks before (bScore, bID).
func less(aScore scoreFP, aID string, bScore scoreFP, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

// priority derives a stable heap priority from the run id.
func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func insert(n *node, id string, score scoreFP) *node {
	if n == nil {
		return &node{id: id, score: score, prio: priority(id), size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score scoreFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order, keeping only runs
// of caseID when it is set.
func collectTopN(n *node, limit int, caseID string, runs map[string]model.Run, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, caseID, runs, out)
	if len(*out) < limit {
		if r, ok := runs[n.id]; ok && (caseID == "" || r.CaseID == caseID) {
			*out = append(*out, entryFromRun(r))
		}
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, caseID, runs, out)
	}
}

// TreapStore keeps runs in memory with a treap ranking index.
type TreapStore struct {
	mu        sync.RWMutex
	root      *node
	runs      map[string]model.Run
	scores    map[string]scoreFP
	byOwner   map[string]map[string]struct{}
	bySession map[string]map[string]struct{}

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	stopOnce              sync.Once
}

var _ Store = (*TreapStore)(nil)

// NewTreapStore constructs a treap store. A background goroutine refreshes
// repository metrics until ctx is done or Close is called.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		runs:                  make(map[string]model.Run),
		scores:                make(map[string]scoreFP),
		byOwner:               make(map[string]map[string]struct{}),
		bySession:             make(map[string]map[string]struct{}),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the metrics goroutine.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateRepositoryRecordsTotal(s.Count(ctx))
			}
		}
	}()
}

func addIndex(idx map[string]map[string]struct{}, key, runID string) {
	if key == "" {
		return
	}
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[runID] = struct{}{}
}

func removeIndex(idx map[string]map[string]struct{}, key, runID string) {
	if set, ok := idx[key]; ok {
		delete(set, runID)
		if len(set) == 0 {
			delete(idx, key)
		}
	}
}

// removeLocked drops a run from every index. Caller holds s.mu.
func (s *TreapStore) removeLocked(runID string) bool {
	old, ok := s.runs[runID]
	if !ok {
		return false
	}
	s.root = deleteNode(s.root, runID, s.scores[runID])
	removeIndex(s.byOwner, old.OwnerID, runID)
	removeIndex(s.bySession, old.SessionID, runID)
	delete(s.runs, runID)
	delete(s.scores, runID)
	return true
}

// Save implements Store.Save in O(log n) expected time.
func (s *TreapStore) Save(_ context.Context, run model.Run) error {
	if run.RunID == "" {
		return ErrInvalidID
	}
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	fp := toFixedPoint(run.Summary.Score)

	s.mu.Lock()
	s.removeLocked(run.RunID)
	s.runs[run.RunID] = run
	s.scores[run.RunID] = fp
	s.root = insert(s.root, run.RunID, fp)
	addIndex(s.byOwner, run.OwnerID, run.RunID)
	addIndex(s.bySession, run.SessionID, run.RunID)
	count := len(s.runs)
	s.mu.Unlock()

	metrics.UpdateRepositoryRecordsTotal(count)
	return nil
}

// Get implements Store.Get.
func (s *TreapStore) Get(_ context.Context, runID string) (model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[runID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Run{}, ErrNotFound
	}
	return r, nil
}

// Delete implements Store.Delete.
func (s *TreapStore) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	s.removeLocked(runID)
	count := len(s.runs)
	s.mu.Unlock()

	metrics.UpdateRepositoryRecordsTotal(count)
	return nil
}

// ListByOwner implements Store.ListByOwner.
func (s *TreapStore) ListByOwner(_ context.Context, ownerID string, limit int) ([]model.Run, error) {
	if limit < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.RLock()
	out := s.collectLocked(s.byOwner[ownerID])
	s.mu.RUnlock()

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListBySession implements Store.ListBySession.
func (s *TreapStore) ListBySession(_ context.Context, sessionID string) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(s.bySession[sessionID]), nil
}

func (s *TreapStore) collectLocked(ids map[string]struct{}) []model.Run {
	out := make([]model.Run, 0, len(ids))
	for id := range ids {
		out = append(out, s.runs[id])
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(runs []model.Run) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].RunID < runs[j].RunID
	})
}

// TopN implements Store.TopN.
func (s *TreapStore) TopN(_ context.Context, caseID string, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	out := make([]Entry, 0, min(n, len(s.runs)))
	collectTopN(s.root, n, caseID, s.runs, &out)
	s.mu.RUnlock()

	assignRanksWithTies(out)
	return out, nil
}

// Count returns the number of stored runs.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
