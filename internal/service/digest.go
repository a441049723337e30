package service

import (
	"fmt"
	"strings"

	"github.com/timmy/jobalerts/internal/domain"
)

const defaultBrand = "Amazon"

// DigestSubject returns the subject line of an alert email.
func DigestSubject(brand string) string {
	if strings.TrimSpace(brand) == "" {
		brand = defaultBrand
	}
	return strings.TrimSpace(brand) + " Job Alert!"
}

// ComposeDigest renders the plain-text body listing jobs in order.
func ComposeDigest(jobs []domain.Job) string {
	lines := make([]string, 0, 2+len(jobs)*9)
	lines = append(lines, fmt.Sprintf("%d new job(s) found for your preferences.\n", len(jobs)))

	for i, job := range jobs {
		lines = append(lines,
			fmt.Sprintf("Job %d", i+1),
			"Title: "+job.Title,
		)
		if v := job.TypeValue(); v != "" {
			lines = append(lines, "Type: "+v)
		}
		if v := job.DurationValue(); v != "" {
			lines = append(lines, "Duration: "+v)
		}
		if v := job.PayValue(); v != "" {
			lines = append(lines, "Pay: "+v)
		}
		if job.Location != "" {
			lines = append(lines, "Location: "+job.Location)
		}

		var parts []string
		for _, p := range []string{job.TypeValue(), job.DurationValue(), job.PayValue(), job.Location} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			lines = append(lines, fmt.Sprintf("Profile: %s - %s", job.Title, strings.Join(parts, ", ")))
		}

		lines = append(lines, "URL: "+job.URL, "")
	}

	return strings.Join(lines, "\n")
}
