// Package memory is the reference in-memory implementation of
// model.ResultStore, used in tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/threatcore/analysis-core/internal/model"
	"github.com/threatcore/analysis-core/internal/svcerr"
)

// Store is a mutex-guarded in-memory model.ResultStore.
type Store struct {
	mu      sync.RWMutex
	results map[string]model.AnalysisResult
	order   []string // insertion order, for ListRecent
}

// New constructs an empty Store.
func New() *Store {
	return &Store{results: make(map[string]model.AnalysisResult)}
}

// Put implements model.ResultStore. It is idempotent on AnalysisID.
func (s *Store) Put(ctx context.Context, result model.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[result.AnalysisID]; !exists {
		s.order = append(s.order, result.AnalysisID)
	}
	s.results[result.AnalysisID] = result
	return nil
}

// Get implements model.ResultStore.
func (s *Store) Get(ctx context.Context, analysisID string) (*model.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[analysisID]
	if !ok {
		return nil, svcerr.NotFound("analysis result not found: " + analysisID)
	}
	clone := r.Clone()
	return &clone, nil
}

// ListBySubmission implements model.ResultStore.
func (s *Store) ListBySubmission(ctx context.Context, submissionID string) ([]model.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AnalysisResult
	for _, id := range s.order {
		r := s.results[id]
		if r.SubmissionID == submissionID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// ListRecent implements model.ResultStore, newest first.
func (s *Store) ListRecent(ctx context.Context, limit, offset int) ([]model.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	if offset > len(ids) {
		offset = len(ids)
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	out := make([]model.AnalysisResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.results[id].Clone())
	}
	return out, nil
}

// ListByVerdict implements model.ResultStore.
func (s *Store) ListByVerdict(ctx context.Context, verdict model.Verdict, limit int) ([]model.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AnalysisResult
	for _, id := range s.order {
		r := s.results[id]
		if r.ConsensusVerdict == verdict {
			out = append(out, r.Clone())
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}
