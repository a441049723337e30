package matching

import "strings"

// Expander turns a raw location preference into lowercase match tokens.
type Expander struct {
	groups AreaGroups
}

// NewExpander creates an Expander over an ordered area-group table.
// Parameters:
//   - groups: vocabulary consulted for label expansion; copied.
// Returns:
//   - *Expander: read-only expander safe for concurrent use.
func NewExpander(groups AreaGroups) *Expander {
	owned := make(AreaGroups, len(groups))
	copy(owned, groups)
	return &Expander{groups: owned}
}

// Groups returns the vocabulary the expander was built with.
func (e *Expander) Groups() AreaGroups {
	return e.groups
}

// Expand parses a ";"-separated preference.
// An "any" part (any case) wins immediately and yields no tokens.
// Returns:
//   - tokens: lowercased, de-duplicated in first-seen order.
//   - anyMode: true when the preference matches every location.
func (e *Expander) Expand(raw string) (tokens []string, anyMode bool) {
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.EqualFold(part, "any") {
			return []string{}, true
		}
		for _, town := range e.resolve(part) {
			token := strings.ToLower(strings.TrimSpace(town))
			if token == "" {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			tokens = append(tokens, token)
		}
	}
	if tokens == nil {
		tokens = []string{}
	}
	return tokens, false
}

// resolve maps one preference part to towns: exact label, then the first
// label containing the part, then the part itself.
func (e *Expander) resolve(part string) []string {
	for _, group := range e.groups {
		if group.Label == part {
			return group.Towns
		}
	}
	lowered := strings.ToLower(part)
	for _, group := range e.groups {
		if strings.Contains(strings.ToLower(group.Label), lowered) {
			return group.Towns
		}
	}
	return []string{part}
}
