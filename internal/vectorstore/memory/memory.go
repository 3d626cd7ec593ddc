package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"mmrag/internal/domain"
)

// Record is one entry of the flat index file.
type Record struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"vector"`
}

// Storage is a simple in-memory vector index using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	ids       []string
	vectors   [][]float32
	norms     []float64
}

// NewStorage returns an empty index.
func NewStorage() *Storage { return &Storage{} }

// Load reads a JSON array of records from path.
// A missing file yields an empty index.
func Load(path string) (*Storage, error) {
	s := NewStorage()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := s.Upsert(records); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

func (s *Storage) Name() string { return "memory" }

// Upsert appends records; all vectors must share one dimension.
func (s *Storage) Upsert(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if len(r.Vector) == 0 {
			return fmt.Errorf("record %q has no vector", r.ID)
		}
		if s.dimension == 0 {
			s.dimension = len(r.Vector)
		}
		if len(r.Vector) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for _, r := range records {
		s.ids = append(s.ids, r.ID)
		s.vectors = append(s.vectors, r.Vector)
		s.norms = append(s.norms, norm(r.Vector))
	}
	return nil
}

// Len returns the number of indexed vectors.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]domain.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 4
	}
	if len(s.ids) == 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(vector), s.dimension)
	}
	qn := norm(vector)
	scores := make([]float64, len(s.vectors))
	for i := range s.vectors {
		scores[i] = cosine(s.vectors[i], vector, s.norms[i], qn)
	}
	idxs := argsortDesc(scores)
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.Hit, 0, topK)
	for _, j := range idxs[:topK] {
		results = append(results, domain.Hit{ID: s.ids[j], Score: scores[j]})
	}
	return results, nil
}

func (s *Storage) Close() error { return nil }

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum / (na * nb)
}

func norm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// argsortDesc orders indexes by descending score; ties keep index order.
func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(i, j int) bool { return vals[idxs[i]] > vals[idxs[j]] })
	return idxs
}
