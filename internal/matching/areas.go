package matching

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AreaGroup is a named cluster of towns a subscriber can pick by label.
type AreaGroup struct {
	Label string   `yaml:"label" json:"label"`
	Towns []string `yaml:"towns" json:"towns"`
}

// AreaGroups is an ordered vocabulary; earlier groups win substring lookups.
type AreaGroups []AreaGroup

// Labels returns the group labels in table order.
func (g AreaGroups) Labels() []string {
	labels := make([]string, 0, len(g))
	for _, group := range g {
		labels = append(labels, group.Label)
	}
	return labels
}

// Validate rejects empty or duplicate labels.
func (g AreaGroups) Validate() error {
	seen := make(map[string]struct{}, len(g))
	for i, group := range g {
		label := strings.TrimSpace(group.Label)
		if label == "" {
			return fmt.Errorf("area group %d: empty label", i)
		}
		if _, ok := seen[label]; ok {
			return fmt.Errorf("area group %q: duplicate label", label)
		}
		seen[label] = struct{}{}
	}
	return nil
}

// ParseAreaGroups decodes a YAML list of {label, towns} entries.
// Parameters:
//   - data: YAML document.
// Returns:
//   - AreaGroups: groups in document order.
//   - error: non-nil if decoding or validation fails.
func ParseAreaGroups(data []byte) (AreaGroups, error) {
	var groups AreaGroups
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode area groups: %w", err)
	}
	if err := groups.Validate(); err != nil {
		return nil, err
	}
	return groups, nil
}

// LoadAreaGroups reads an area-group YAML file from disk.
func LoadAreaGroups(path string) (AreaGroups, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read area groups file: %w", err)
	}
	return ParseAreaGroups(data)
}

// DefaultAreaGroups returns the built-in vocabulary for a region.
// The US worker matches literal town names only, so it has no groups.
func DefaultAreaGroups(region string) AreaGroups {
	switch strings.ToLower(region) {
	case "uk", "":
		out := make(AreaGroups, len(ukAreaGroups))
		copy(out, ukAreaGroups)
		return out
	default:
		return AreaGroups{}
	}
}

var ukAreaGroups = AreaGroups{
	{Label: "Birmingham / Midlands", Towns: []string{
		"Birmingham", "Rugeley", "Coalville", "Daventry", "Coventry", "Rugby", "Hinckley", "Redditch",
		"Stoke-on-Trent", "Wednesbury", "Mansfield", "Eastwood", "Kegworth", "Northampton", "Banbury",
		"Burton-on-Trent",
	}},
	{Label: "Manchester / North West", Towns: []string{
		"Manchester", "Warrington", "Bolton", "Haydock", "Rochdale", "Carlisle", "Stoke-on-Trent",
	}},
	{Label: "Leeds / Yorkshire", Towns: []string{
		"Leeds", "Doncaster", "Wakefield", "Sheffield", "Hull", "North Ferriby",
	}},
	{Label: "Newcastle / North East", Towns: []string{
		"Newcastle upon Tyne", "Gateshead", "Durham", "Sunderland", "Darlington", "Billingham",
	}},
	{Label: "London (inner)", Towns: []string{
		"London", "Barking", "Croydon", "Enfield", "Bexley", "Neasden", "Orpington",
	}},
	{Label: "London commuter belt / South East", Towns: []string{
		"Tilbury", "Dartford", "Rochester", "Aylesford", "Harlow", "Grays", "Weybridge",
	}},
	{Label: "East of England", Towns: []string{
		"Bedford", "Milton Keynes", "Ridgmont", "Dunstable", "Peterborough", "Norwich", "Ipswich", "Cambridge",
	}},
	{Label: "South West", Towns: []string{
		"Bristol", "Swindon", "Exeter", "Plymouth",
	}},
	{Label: "South Wales", Towns: []string{
		"Cardiff", "Newport", "Port Talbot", "Swansea", "Garden City",
	}},
	{Label: "Glasgow / Edinburgh", Towns: []string{
		"Glasgow", "Edinburgh", "Dunfermline", "Bathgate", "Dundee",
	}},
	{Label: "Northern Ireland", Towns: []string{
		"Belfast", "Portadown",
	}},
}
