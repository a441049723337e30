package hiring

import (
	"strings"

	"github.com/timmy/jobalerts/internal/domain"
	"github.com/timmy/jobalerts/internal/source"
)

const (
	typeMarker     = "Type:"
	durationMarker = "Duration:"
	payMarker      = "Pay rate:"
	unknownTitle   = "Unknown role"
	// detailWindow is how many lines after a "Type:" line may carry its details.
	detailWindow = 7
)

// ParseJobsFromText extracts postings from the visible text of a search page.
// Every line containing "Type:" starts a posting whose title is the line
// above it; the next few lines may carry duration, pay and location.
// Postings repeating an earlier (title, location) pair are dropped.
func ParseJobsFromText(text string) []domain.RawJob {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	var jobs []domain.RawJob
	for i, line := range lines {
		idx := strings.Index(line, typeMarker)
		if idx < 0 {
			continue
		}

		job := domain.RawJob{
			Title: unknownTitle,
			Type:  strings.TrimSpace(line[idx+len(typeMarker):]),
		}
		if i > 0 {
			job.Title = lines[i-1]
		}

		end := min(i+1+detailWindow, len(lines))
		for _, next := range lines[i+1 : end] {
			if v, ok := after(next, durationMarker); ok {
				job.Duration = v
				continue
			}
			if v, ok := after(next, payMarker); ok {
				job.Pay = v
				continue
			}
			if job.Location == "" && looksLikeLocation(next) {
				job.Location = next
			}
		}

		jobs = append(jobs, job)
	}

	return source.DedupeByTitleLocation(jobs)
}

func after(line, marker string) (string, bool) {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(line[idx+len(marker):]), true
}

func looksLikeLocation(line string) bool {
	return strings.Contains(line, ",") ||
		strings.Contains(line, "United States") ||
		strings.Contains(line, "USA")
}
