package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coach-agent/internal/domain"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type completion struct {
	text string
	err  error
}

// fakeCompleter returns scripted completions in order, repeating the last one.
type fakeCompleter struct {
	mu        sync.Mutex
	responses []completion
	calls     [][]domain.ChatMessage
}

func (f *fakeCompleter) Complete(_ context.Context, messages []domain.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if len(f.responses) == 0 {
		return "", errors.New("no completion configured")
	}
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx].text, f.responses[idx].err
}

func failing() *fakeCompleter {
	return &fakeCompleter{responses: []completion{{err: errors.New("gateway down")}}}
}

func answering(text string) *fakeCompleter {
	return &fakeCompleter{responses: []completion{{text: text}}}
}

type panicCompleter struct{}

func (panicCompleter) Complete(context.Context, []domain.ChatMessage) (string, error) {
	panic("provider exploded")
}

// fixedRandom yields the given operands in order, cycling.
func fixedRandom(values ...int) func(int) int {
	i := 0
	return func(n int) int {
		v := values[i%len(values)]
		i++
		return v % n
	}
}

func newTestResolver(t *testing.T, c *fakeCompleter, opts ...ResolverOption) *Resolver {
	t.Helper()
	opts = append([]ResolverOption{WithClock(func() time.Time { return testNow })}, opts...)
	r, err := NewResolver(c, opts...)
	require.NoError(t, err)
	return r
}

func newRecord() *domain.SessionRecord {
	return domain.NewSessionRecord("s1", testNow)
}

// fakeStore is an in-memory SessionStore with versioning and injectable
// conflicts.
type fakeStore struct {
	mu        sync.Mutex
	records   map[string]domain.SessionRecord
	versions  map[string]int64
	getErr    error
	putErr    error
	conflicts int
	gets      int
	puts      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]domain.SessionRecord{}, versions: map[string]int64{}}
}

func (s *fakeStore) Get(_ context.Context, id string) (*domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	rec.History = append([]domain.ChatMessage(nil), rec.History...)
	rec.Version = s.versions[id]
	return &rec, nil
}

func (s *fakeStore) Put(_ context.Context, rec *domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	if s.conflicts > 0 {
		s.conflicts--
		return domain.ErrVersionConflict
	}
	if s.versions[rec.SessionID] != rec.Version {
		return domain.ErrVersionConflict
	}
	rec.Version++
	s.versions[rec.SessionID] = rec.Version
	s.records[rec.SessionID] = *rec
	return nil
}

func (s *fakeStore) record(t *testing.T, id string) domain.SessionRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	require.True(t, ok, "record %s not stored", id)
	return rec
}

func expectUsecaseError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}
