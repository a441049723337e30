package source

import (
	"context"
	"errors"
	"testing"

	"github.com/timmy/jobalerts/internal/domain"
)

type stubSource struct {
	name  string
	jobs  []domain.RawJob
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchJobs(ctx context.Context) ([]domain.RawJob, error) {
	s.calls++
	return s.jobs, s.err
}

type memCache struct {
	data map[string][]domain.RawJob
}

func (m *memCache) Get(ctx context.Context, source, scope string) ([]domain.RawJob, bool) {
	jobs, ok := m.data[source+"|"+scope]
	return jobs, ok
}

func (m *memCache) Set(ctx context.Context, source, scope string, jobs []domain.RawJob) error {
	m.data[source+"|"+scope] = jobs
	return nil
}

func TestMultiFetchJobs(t *testing.T) {
	a := &stubSource{name: "a", jobs: []domain.RawJob{{Title: "A1"}, {Title: "A2"}}}
	b := &stubSource{name: "b", jobs: []domain.RawJob{{Title: "B1"}}}

	m := NewMulti(a, b)
	if m.Name() != "multi(a,b)" {
		t.Errorf("Name() = %q", m.Name())
	}

	jobs, err := m.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("FetchJobs() error = %v", err)
	}
	want := []string{"A1", "A2", "B1"}
	if len(jobs) != len(want) {
		t.Fatalf("got %d jobs, want %d", len(jobs), len(want))
	}
	for i, w := range want {
		if jobs[i].Title != w {
			t.Errorf("jobs[%d].Title = %q, want %q", i, jobs[i].Title, w)
		}
	}
}

func TestMultiFetchJobsError(t *testing.T) {
	ok := &stubSource{name: "ok", jobs: []domain.RawJob{{Title: "x"}}}
	bad := &stubSource{name: "bad", err: &domain.FetchError{Source: "bad", Err: errors.New("boom")}}

	_, err := NewMulti(ok, bad).FetchJobs(context.Background())
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *domain.FetchError", err)
	}
	if fe.Source != "bad" {
		t.Errorf("Source = %q, want bad", fe.Source)
	}
}

func TestCachedFetchJobs(t *testing.T) {
	src := &stubSource{name: "hiring:uk", jobs: []domain.RawJob{{Title: "Picker"}}}
	c := NewCached(src, &memCache{data: map[string][]domain.RawJob{}}, "uk")

	for i := 0; i < 3; i++ {
		jobs, err := c.FetchJobs(context.Background())
		if err != nil {
			t.Fatalf("FetchJobs() error = %v", err)
		}
		if len(jobs) != 1 || jobs[0].Title != "Picker" {
			t.Fatalf("jobs = %+v", jobs)
		}
	}
	if src.calls != 1 {
		t.Errorf("source called %d times, want 1", src.calls)
	}
}

func TestCachedFetchJobsErrorNotCached(t *testing.T) {
	src := &stubSource{name: "s", err: errors.New("down")}
	cache := &memCache{data: map[string][]domain.RawJob{}}
	c := NewCached(src, cache, "uk")

	if _, err := c.FetchJobs(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(cache.data) != 0 {
		t.Errorf("cache populated on error: %v", cache.data)
	}
}

func TestDedupeByTitleLocation(t *testing.T) {
	in := []domain.RawJob{
		{Title: "A", Location: "X", Type: "first"},
		{Title: "A", Location: "Y"},
		{Title: "A", Location: "X", Type: "second"},
	}
	got := DedupeByTitleLocation(in)
	if len(got) != 2 || got[0].Type != "first" {
		t.Errorf("DedupeByTitleLocation() = %+v", got)
	}
}
