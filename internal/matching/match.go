package matching

import (
	"regexp"
	"strings"

	"github.com/timmy/jobalerts/internal/domain"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Matches decides whether job satisfies one subscription's expanded preference.
// Inactive subscriptions never match, and an empty token set matches nothing
// unless anyMode is set.
func Matches(job domain.Job, tokens []string, jobTypePref string, anyMode, active bool) bool {
	if !active {
		return false
	}
	if !anyMode && !LocationMatches(job.Location, tokens) {
		return false
	}
	return JobTypeMatches(job, jobTypePref)
}

// LocationMatches reports whether any token is a whole word of location
// or a substring of it. Whole-word checks keep "glasgow" off "Gloucester";
// substring checks catch multi-word towns such as "milton keynes".
func LocationMatches(location string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	loc := strings.ToLower(location)
	words := make(map[string]struct{})
	for _, w := range nonAlnum.Split(loc, -1) {
		if w != "" {
			words[w] = struct{}{}
		}
	}
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if _, ok := words[token]; ok {
			return true
		}
		if strings.Contains(loc, token) {
			return true
		}
	}
	return false
}

// JobTypeMatches applies the job-type filter against "type duration".
func JobTypeMatches(job domain.Job, pref string) bool {
	pref = strings.ToLower(strings.TrimSpace(pref))
	if pref == "" || pref == "any" {
		return true
	}
	combined := strings.ToLower(job.TypeValue() + " " + job.DurationValue())
	return strings.Contains(combined, pref)
}

// MatchSubscription expands sub's preference and evaluates job against it.
func (e *Expander) MatchSubscription(job domain.Job, sub domain.Subscription) bool {
	tokens, anyMode := e.Expand(sub.PreferredLocation)
	return Matches(job, tokens, sub.JobType, anyMode, sub.Active)
}
