package domain

import "strings"

// Section is one report thread on the coordination page: a headline and
// everything below it up to the next headline.
type Section struct {
	Header string
	Body   string
}

// SplitSections divides raw page text into a preamble and an ordered list of
// sections. A line that starts and ends with "==" (ignoring surrounding
// whitespace) opens a new section; everything before the first headline is
// the preamble. Two headlines in direct succession yield a section with an
// empty body. Rebuild inverts the split byte for byte.
func SplitSections(text string) (preamble string, sections []Section) {
	var intro strings.Builder
	inBody := false
	for _, line := range splitLines(text) {
		if isHeadline(line) {
			sections = append(sections, Section{Header: line})
			inBody = true
			continue
		}
		if !inBody {
			intro.WriteString(line)
			continue
		}
		sections[len(sections)-1].Body += line
	}
	return intro.String(), sections
}

// Rebuild reassembles page text from a preamble and sections.
func Rebuild(preamble string, sections []Section) string {
	var out strings.Builder
	out.WriteString(preamble)
	for _, section := range sections {
		out.WriteString(section.Header)
		out.WriteString(section.Body)
	}
	return out.String()
}

// splitLines splits text into lines keeping each line's terminator attached,
// so that concatenating the lines reproduces the input exactly.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func isHeadline(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "==") && strings.HasSuffix(trimmed, "==")
}
