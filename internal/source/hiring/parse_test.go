package hiring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/timmy/jobalerts/internal/domain"
)

func TestParseJobsFromText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []domain.RawJob
	}{
		{
			name: "single posting with all details",
			text: `
Warehouse Operative
Type: Full Time
Duration: Fixed-term
Pay rate: From £14.30
Coventry, United Kingdom
`,
			want: []domain.RawJob{{
				Title:    "Warehouse Operative",
				Type:     "Full Time",
				Duration: "Fixed-term",
				Pay:      "From £14.30",
				Location: "Coventry, United Kingdom",
			}},
		},
		{
			name: "type on first line has unknown title",
			text: "Type: Part Time\nWeston, WI",
			want: []domain.RawJob{{Title: "Unknown role", Type: "Part Time", Location: "Weston, WI"}},
		},
		{
			name: "first location-looking line wins",
			text: "Picker\nType: Seasonal\nCharlton, MA\nBoston, MA",
			want: []domain.RawJob{{Title: "Picker", Type: "Seasonal", Location: "Charlton, MA"}},
		},
		{
			name: "USA marker counts as location",
			text: "Sorter\nType: Regular\nRemote USA",
			want: []domain.RawJob{{Title: "Sorter", Type: "Regular", Location: "Remote USA"}},
		},
		{
			name: "details beyond the window are ignored",
			text: "Packer\nType: Full Time\na\nb\nc\nd\ne\nf\ng\nLeeds, UK",
			want: []domain.RawJob{{Title: "Packer", Type: "Full Time"}},
		},
		{
			name: "duplicate title and location dropped",
			text: "Picker\nType: Full Time\nLeeds, UK\nPicker\nType: Part Time\nLeeds, UK",
			want: []domain.RawJob{{Title: "Picker", Type: "Full Time", Location: "Leeds, UK"}},
		},
		{
			name: "no postings",
			text: "Nothing here\n\n",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseJobsFromText(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d jobs, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("job %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

const samplePage = `<html><head><script>var x = "Type: ignored";</script></head><body>
<div class="card"><h3>Warehouse Operative</h3><div>Type: Full Time</div><div>Duration: Fixed-term</div>
<div>Pay rate: From £14.30</div><div>Swansea, Wales</div></div>
<div class="card"><h3>Sortation Associate</h3><div>Type: Part Time</div><div>London, United Kingdom</div></div>
</body></html>`

func TestAdapterFetchJobs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	a := NewAdapter(Config{Region: "uk", SearchURL: srv.URL})
	jobs, err := a.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("FetchJobs() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2: %+v", len(jobs), jobs)
	}
	if jobs[0].Title != "Warehouse Operative" || jobs[0].Location != "Swansea, Wales" || jobs[0].Pay != "From £14.30" {
		t.Errorf("jobs[0] = %+v", jobs[0])
	}
	if jobs[1].Title != "Sortation Associate" || jobs[1].Type != "Part Time" {
		t.Errorf("jobs[1] = %+v", jobs[1])
	}
	if jobs[0].URL != "" {
		t.Errorf("URL = %q, want empty", jobs[0].URL)
	}
}

func TestAdapterFetchJobsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewAdapter(Config{Region: "us", SearchURL: srv.URL})
	_, err := a.FetchJobs(context.Background())
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *domain.FetchError", err)
	}
	if fe.Source != "hiring:us" {
		t.Errorf("Source = %q", fe.Source)
	}
}
