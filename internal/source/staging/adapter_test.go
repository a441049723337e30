package staging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/timmy/jobalerts/internal/domain"
)

func writeManifest(t *testing.T, base, id, content string) {
	t.Helper()
	dir := filepath.Join(base, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAdapterFetchJobs(t *testing.T) {
	base := t.TempDir()
	writeManifest(t, base, "uk", `{"title":"Warehouse Operative","type":"Full Time","location":"Coventry, United Kingdom","url":"https://example.com/job1"}

not json
{"title":"Sortation Associate","location":"Leeds, United Kingdom"}
`)

	a := NewAdapter(base, "uk")
	if a.Name() != "staging:uk" {
		t.Errorf("Name() = %q", a.Name())
	}

	jobs, err := a.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("FetchJobs() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].Type != "Full Time" || jobs[0].URL != "https://example.com/job1" {
		t.Errorf("jobs[0] = %+v", jobs[0])
	}
	if jobs[1].URL != "" {
		t.Errorf("jobs[1].URL = %q, want empty", jobs[1].URL)
	}
}

func TestAdapterMissingManifest(t *testing.T) {
	_, err := NewAdapter(t.TempDir(), "nope").FetchJobs(context.Background())
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *domain.FetchError", err)
	}
}

func TestAdapterAvailable(t *testing.T) {
	base := t.TempDir()
	writeManifest(t, base, "uk", "")
	if err := os.MkdirAll(filepath.Join(base, "us", ManifestFileName), 0o755); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		region string
		want   bool
	}{
		{region: "uk", want: true},
		{region: "UK", want: true},
		{region: "us", want: false},
		{region: "de", want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.region, func(t *testing.T) {
			if got := NewAdapter(base, tc.region).Available(); got != tc.want {
				t.Errorf("Available() = %v, want %v", got, tc.want)
			}
		})
	}
}
