// Package memstore is an in-process store used for development and tests.
// It enforces the same unique keys as the persistent backends.
package memstore

import (
	"context"
	"strconv"
	"sync"

	"post-crawler/internal/post_crawler/model"
	"post-crawler/internal/post_crawler/store"
)

const maxPageLimit = 15

type Store struct {
	mu sync.RWMutex

	seq       int
	summaries []model.Summary
	sumByURL  map[string]int
	sumByID   map[string]int
	sumByKey  map[string]int

	details     []model.Detail
	detByURL    map[string]int
	detByColl   map[string]int
	detByPostID map[string]int
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		sumByURL:    make(map[string]int),
		sumByID:     make(map[string]int),
		sumByKey:    make(map[string]int),
		detByURL:    make(map[string]int),
		detByColl:   make(map[string]int),
		detByPostID: make(map[string]int),
	}
}

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) nextKey() string {
	s.seq++
	return strconv.Itoa(s.seq)
}

func (s *Store) FindSummary(_ context.Context, q store.SummaryQuery) (model.Summary, error) {
	if q.Empty() {
		return model.Summary{}, store.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sum := range s.summaries {
		if q.ID != "" && sum.ID != q.ID {
			continue
		}
		if q.URL != "" && sum.URL != q.URL {
			continue
		}
		if q.Title != "" && sum.Title != q.Title {
			continue
		}
		return cloneSummary(sum), nil
	}
	return model.Summary{}, store.ErrNotFound
}

func (s *Store) InsertSummary(_ context.Context, sum model.Summary) (model.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sumByURL[sum.URL]; ok {
		return model.Summary{}, store.ErrDuplicate
	}
	if _, ok := s.sumByID[sum.ID]; ok && sum.ID != "" {
		return model.Summary{}, store.ErrDuplicate
	}
	sum = cloneSummary(sum)
	sum.Key = s.nextKey()
	idx := len(s.summaries)
	s.summaries = append(s.summaries, sum)
	s.sumByURL[sum.URL] = idx
	s.sumByKey[sum.Key] = idx
	if sum.ID != "" {
		s.sumByID[sum.ID] = idx
	}
	return cloneSummary(sum), nil
}

func (s *Store) ListSummaries(_ context.Context, page, limit int) ([]model.Summary, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	skip, lim := store.Page(page, limit, maxPageLimit)
	total := int64(len(s.summaries))
	if skip >= len(s.summaries) {
		return []model.Summary{}, total, nil
	}
	end := skip + lim
	if end > len(s.summaries) {
		end = len(s.summaries)
	}
	out := make([]model.Summary, 0, end-skip)
	for _, sum := range s.summaries[skip:end] {
		out = append(out, cloneSummary(sum))
	}
	return out, total, nil
}

func (s *Store) SummaryRefs(context.Context) ([]model.SummaryRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SummaryRef, 0, len(s.summaries))
	for _, sum := range s.summaries {
		out = append(out, model.SummaryRef{ID: sum.ID, URL: sum.URL})
	}
	return out, nil
}

func (s *Store) SummariesMissingID(context.Context) ([]model.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Summary
	for _, sum := range s.summaries {
		if sum.ID == "" {
			out = append(out, cloneSummary(sum))
		}
	}
	return out, nil
}

func (s *Store) SetSummaryID(_ context.Context, key, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.sumByKey[key]
	if !ok || s.summaries[idx].ID != "" {
		return store.ErrNotFound
	}
	if _, taken := s.sumByID[id]; taken {
		return store.ErrDuplicate
	}
	s.summaries[idx].ID = id
	s.sumByID[id] = idx
	return nil
}

func (s *Store) FindDetailByURL(_ context.Context, url string) (model.Detail, error) {
	return s.findDetail(s.detByURL, url)
}

func (s *Store) FindDetailByCollectionID(_ context.Context, postCollectionID string) (model.Detail, error) {
	return s.findDetail(s.detByColl, postCollectionID)
}

func (s *Store) FindDetailByPostID(_ context.Context, postID string) (model.Detail, error) {
	return s.findDetail(s.detByPostID, postID)
}

func (s *Store) findDetail(index map[string]int, key string) (model.Detail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := index[key]
	if !ok {
		return model.Detail{}, store.ErrNotFound
	}
	return cloneDetail(s.details[idx]), nil
}

func (s *Store) InsertDetail(_ context.Context, d model.Detail) (model.Detail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.detByColl[d.PostCollectionID]; ok {
		return model.Detail{}, store.ErrDuplicate
	}
	if _, ok := s.detByPostID[d.PostID]; ok {
		return model.Detail{}, store.ErrDuplicate
	}
	d = cloneDetail(d)
	d.Key = s.nextKey()
	idx := len(s.details)
	s.details = append(s.details, d)
	s.detByColl[d.PostCollectionID] = idx
	s.detByPostID[d.PostID] = idx
	if _, ok := s.detByURL[d.URL]; !ok {
		s.detByURL[d.URL] = idx
	}
	return cloneDetail(d), nil
}

// Counts reports how many records each collection holds.
func (s *Store) Counts() (summaries, details int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.summaries), len(s.details)
}

// Details returns a copy of every stored detail record.
func (s *Store) Details() []model.Detail {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Detail, 0, len(s.details))
	for _, d := range s.details {
		out = append(out, cloneDetail(d))
	}
	return out
}

// PutLegacySummary stores a summary bypassing id assignment, the way rows
// written before ids existed look.
func (s *Store) PutLegacySummary(fields model.SummaryFields) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := model.Summary{Key: s.nextKey(), SummaryFields: fields}
	sum.Tags = append([]string(nil), fields.Tags...)
	idx := len(s.summaries)
	s.summaries = append(s.summaries, sum)
	s.sumByURL[sum.URL] = idx
	s.sumByKey[sum.Key] = idx
	return sum.Key
}

func cloneSummary(s model.Summary) model.Summary {
	s.Tags = append([]string(nil), s.Tags...)
	return s
}

func cloneDetail(d model.Detail) model.Detail {
	d.Tags = append([]string(nil), d.Tags...)
	d.SuggestedPosts = append([]model.PostRef(nil), d.SuggestedPosts...)
	return d
}
