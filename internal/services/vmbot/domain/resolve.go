package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"golang.org/x/text/message"

	"github.com/xqbot/vmbot/internal/wiki"
)

// Resolver matches loaded action records against open report sections and
// closes the matched reports.
type Resolver struct {
	users    wiki.UserDirectory
	printer  *message.Printer
	headNote string
	prefix   string
}

// NewResolver creates a resolver writing the given closed-state note.
func NewResolver(users wiki.UserDirectory, printer *message.Printer, headNote string) *Resolver {
	return &Resolver{
		users:    users,
		printer:  printer,
		headNote: headNote,
		prefix:   TemplatePrefix,
	}
}

// Resolution is the outcome of one resolution pass over a sectioned page.
type Resolution struct {
	Sections []Section      // section list with all mutations applied
	Matched  int            // records matched to open sections
	Mutated  int            // sections actually closed
	Closed   []ActionRecord // records whose reports were closed
	Summary  string         // complete edit summary for the commit
}

// Resolve applies every record to the section list and returns the mutated
// copy. All mutations land in memory before a single commit; when Mutated is
// zero the caller must not write. A record whose subject is no longer in the
// acted-upon state is skipped, and a self-requested block leaves its report
// open for human review.
func (r *Resolver) Resolve(ctx context.Context, sections []Section, records []ActionRecord) (Resolution, error) {
	res := Resolution{Sections: append([]Section(nil), sections...)}
	var fragments []string

	for _, rec := range records {
		matcher, err := headlineMatcher(rec)
		if err != nil {
			log.Printf("skipping unmatchable subject %q: %v", rec.Subject, err)
			continue
		}
		for i := range res.Sections {
			header := res.Sections[i].Header
			if !matcher.MatchString(header) || IsClosed(header) {
				continue
			}

			res.Matched++
			fragments = append(fragments, summaryFragment(rec))

			if !rec.Protection {
				// The record may be stale: the block could have been
				// lifted between load and commit.
				info, err := r.users.UserInfo(ctx, rec.Subject)
				if err != nil {
					if isPermanentLookupError(err) {
						log.Printf("cannot verify %q, skipping: %v", rec.Subject, err)
						continue
					}
					return Resolution{}, fmt.Errorf("verify block of %q: %w", rec.Subject, err)
				}
				if !info.Blocked {
					continue
				}
				if strings.Contains(rec.Reason, VoluntaryBlockPhrase) {
					continue
				}
			}

			res.Sections[i].Header = MarkClosed(header, r.headNote)
			res.Sections[i].Body += r.closingLine(rec)
			res.Mutated++
			res.Closed = append(res.Closed, rec)
		}
	}

	res.Summary = r.editSummary(res.Sections, fragments)
	return res, nil
}

// closingLine renders the templated note appended to a closed report.
func (r *Resolver) closingLine(rec ActionRecord) string {
	reason := strings.ReplaceAll(rec.Reason, "|", "{{subst:!}}")
	tail := "Teilsperre=" + FormatRestrictions(r.printer, rec.Restrict)
	if rec.Protection {
		tail = "Aktion=geschützt"
	}
	return fmt.Sprintf(
		"{{subst:%sVM-erledigt|Gemeldeter=%s|Admin=%s|Zeit=%s|Begründung=%s|subst=subst:|%s}}\n",
		r.prefix, rec.Subject, rec.Admin, rec.Duration, reason, tail)
}

// editSummary combines the per-case link fragments with the informational
// open-sections tally.
func (r *Resolver) editSummary(sections []Section, fragments []string) string {
	if len(fragments) == 0 {
		return ""
	}

	label := "Bot: Abschnitt erledigt: "
	if len(fragments) > 1 {
		label = "Bot: Abschnitte erledigt: "
	}

	open, oldest := openSections(sections)
	var tail string
	switch {
	case open == 1:
		tail = fmt.Sprintf("; Abschnitt %s scheint noch offen zu sein", oldest)
	case open > 1:
		tail = fmt.Sprintf("; %d Abschnitte scheinen noch offen zu sein, der älteste zu %s", open, oldest)
	}
	return label + strings.Join(fragments, ", ") + tail
}

// anyReportHeadlineRE recognises a headline that names any report subject as
// a wiki link, user or page alike. Used only for the open-sections tally.
var anyReportHeadlineRE = regexp.MustCompile(`== *(?:(?:Artikel|Seite)[: ])?\[+:?[^]]+\]+.*== *`)

// openSections counts the report sections still lacking a closed marker and
// returns the oldest one's cleaned title. Sections appear oldest first.
func openSections(sections []Section) (count int, oldest string) {
	for _, section := range sections {
		if IsClosed(section.Header) || !anyReportHeadlineRE.MatchString(section.Header) {
			continue
		}
		count++
		if oldest == "" {
			oldest = CleanHeader(section.Header)
		}
	}
	return count, oldest
}

// summaryFragment renders the identity reference for the edit summary.
func summaryFragment(rec ActionRecord) string {
	name := rec.Subject
	switch {
	case rec.Protection && IsIPv4(name):
		return fmt.Sprintf("[[%s|%s]]", name, name)
	case rec.Protection:
		return fmt.Sprintf("[[%s|]]", name)
	case IsIPv4(name):
		return fmt.Sprintf("[[Spezial:Beiträge/%s|%s]]", name, name)
	default:
		return fmt.Sprintf("[[User:%s|%s]]", name, name)
	}
}

// isPermanentLookupError reports whether an identity lookup failed in a way
// a retry cannot fix.
func isPermanentLookupError(err error) bool {
	return errors.Is(err, wiki.ErrInvalidName) || errors.Is(err, wiki.ErrPageMissing)
}

// headlineMatcher builds the identity-specific matcher for one record: the
// subject is quoted for literal matching inside the headline link forms.
func headlineMatcher(rec ActionRecord) (*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(rec.Subject)
	if rec.Protection {
		return regexp.Compile(`== *(?:(?:Artikel|Seite)[: ])?\[*:?` + quoted + `(?:\|[^]]+)? *\]* *==`)
	}
	return regexp.Compile(
		`== *\[+(?:[Bb]enutzer(?:in)?:\W?|[Uu]ser:|Spezial:Beiträge/|Special:Contributions/) *` +
			quoted + ` *(?:\|[^]]*)?\]+.*== *`)
}
