package service

import "strings"

// Report section titles, in output order.
const (
	MissingSectionTitle = "Missing Reference Databases:"
	ReducedSectionTitle = "Reduced Count Reference Databases:"
	StableSectionTitle  = "Proper Count Reference Databases:"
)

var reportSections = []struct {
	title string
	class Class
}{
	{MissingSectionTitle, Missing},
	{ReducedSectionTitle, Reduced},
	{StableSectionTitle, Stable},
}

// Render produces the plain-text report: the Missing, Reduced and Stable
// sections in that order, each printed even when empty.
// Each section is its title, a blank line, one message per line and a
// trailing blank line.
func Render(result ComparisonResult) string {
	var b strings.Builder
	for _, section := range reportSections {
		b.WriteString(section.title)
		b.WriteString("\n\n")
		for _, msg := range result.Messages(section.class) {
			b.WriteString(msg)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
