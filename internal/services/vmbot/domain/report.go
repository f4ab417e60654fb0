package domain

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// closedMarkerRE recognises a headline that was already handled, in any of
// the spellings clerks use ("(erl.)", "(erledigt)", "(nicht erl.)",
// "(gesperrt)", "(in Bearbeitung)"). Case-insensitive to cover sloppy edits.
var closedMarkerRE = regexp.MustCompile(`(?i)\( *((nicht +)?erl(\.?|edigt)|gesperrt|in bearbeitung) *\)`)

// IsClosed reports whether a section headline already carries a
// closed-state marker.
func IsClosed(header string) bool {
	return closedMarkerRE.MatchString(header)
}

var headlineTailRE = regexp.MustCompile(`== *(\n?)$`)

// MarkClosed rewrites a headline to carry the closed-state note, e.g.
// "== [[Benutzer:X]] ==" becomes "== [[Benutzer:X]] (erl.) ==".
func MarkClosed(header, note string) string {
	return headlineTailRE.ReplaceAllString(header, "("+note+") ==$1")
}

// headlineUserRE extracts the reported user from a section headline built
// around a user link, in any of the link forms used on the page.
var headlineUserRE = regexp.MustCompile(
	`== *\[+(?:[Bb]enutzer(?:in)?:\W?|[Uu]ser:|Spezial:Beiträge/|Special:Contributions/)` +
		`([^]|=]+?) *(?:\|[^]]*)? *\]+.*== *`)

// DefendantFromHeader returns the reported user named in a headline, or ""
// when the headline does not reference a user.
func DefendantFromHeader(header string) string {
	m := headlineUserRE.FindStringSubmatch(header)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// signatureRE matches the first signature-style text in a section body: a
// user link followed, within a short distance, by a local-time timestamp.
var signatureRE = regexp.MustCompile(
	`\[\[(?:[Bb]enutzer(?:in)?(?:[ _]Diskussion)?:|[Uu]ser(?:[ _]talk)?:|Spezial:Beiträge/|Special:Contributions/)` +
		`([^|\]]+)\|.*?\]\].{1,30}` +
		`([0-9]{2}):([0-9]{2}), ([0-9]{1,2})\.? ([a-zA-Zä]{3,10})\.? ([0-9]{4}) \((?:CE[S]?T|ME[S]?Z|UTC)\)`)

// AccuserFromBody extracts the accuser and the signature timestamp from the
// first signature found in a section body. The first signature is assumed to
// be the report's author. Returns empty strings when no signature matches,
// which is common for malformed or very old reports.
func AccuserFromBody(body string) (accuser, timestamp string) {
	m := signatureRE.FindStringSubmatch(body)
	if m == nil {
		return "", ""
	}
	hh, mm, dd, month, year := m[2], m[3], m[4], m[5], m[6]
	return m[1], strings.Join([]string{year, month, dd, hh + ":" + mm}, " ")
}

var ipv4RE = regexp.MustCompile(
	`(?:1?\d?\d|2[0-5]\d)\.(?:1?\d?\d|2[0-5]\d)\.(?:1?\d?\d|2[0-5]\d)\.(?:1?\d?\d|2[0-5]\d)`)

// IsIPv4 reports whether the identity looks like a network address.
func IsIPv4(name string) bool {
	return ipv4RE.MatchString(name)
}

var (
	headlinePrefixRE = regexp.MustCompile(`==+ *\[?\[?`)
	headlineLinkTail = regexp.MustCompile(`\]\].*`)
)

// CleanHeader strips headline markup and link decoration, leaving the plain
// section title used in talk-page messages and edit summaries.
func CleanHeader(header string) string {
	s := headlinePrefixRE.ReplaceAllString(header, "")
	s = headlineLinkTail.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// FirstUpper returns the name with its first rune upper-cased, matching how
// the document store canonicalises page titles.
func FirstUpper(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}
