package domain

import "strings"

// Subject is a label from the closed set of supported courses.
type Subject string

// Folded returns the lower-cased label used for matching.
func (s Subject) Folded() string {
	return strings.ToLower(string(s))
}

// String implements fmt.Stringer.
func (s Subject) String() string {
	return string(s)
}

// SubjectsFromLabels converts raw labels, dropping blanks.
func SubjectsFromLabels(labels []string) []Subject {
	out := make([]Subject, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, Subject(l))
	}
	return out
}
