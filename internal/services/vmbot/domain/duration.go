package domain

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/message"
)

// durationVocabulary lists the tokens the log API is known to emit inside
// duration strings. Tokens outside this list are left untranslated.
var durationVocabulary = map[string]bool{
	"gmt": true, "mon": true, "sat": true, "sun": true,
	"second": true, "seconds": true, "min": true, "minute": true, "minutes": true,
	"hour": true, "hours": true, "day": true, "days": true,
	"week": true, "weeks": true, "month": true, "months": true,
	"year": true, "years": true,
	"infinite": true, "infinity": true, "indefinite": true,
}

var durationTokenRE = regexp.MustCompile(`[DHIMSWYa-z]+`)

// TranslateDuration renders a raw log duration string, e.g. "2 weeks", in
// the output language. Unknown tokens are logged and kept as-is rather than
// failing the record.
func TranslateDuration(p *message.Printer, raw string) string {
	return durationTokenRE.ReplaceAllStringFunc(raw, func(token string) string {
		key := strings.ToLower(token)
		if !durationVocabulary[key] {
			log.Printf("no translation for %q in %q", token, raw)
			return token
		}
		return p.Sprintf(key)
	})
}

// blockLengthUnits is the descending unit breakdown used by
// FormatBlockLength. Months are deliberately absent: the breakdown follows
// the 365-day year and 7-day week the original clerk messages use.
var blockLengthUnits = []struct {
	singular string
	plural   string
	seconds  int
}{
	{"year", "years", 365 * 24 * 3600},
	{"week", "weeks", 7 * 24 * 3600},
	{"day", "days", 24 * 3600},
	{"hour", "hours", 3600},
	{"minute", "minutes", 60},
	{"second", "seconds", 1},
}

// FormatBlockLength renders the span between the block and its expiry as a
// human-readable breakdown in descending units, omitting zero-valued units.
// A missing or non-future expiry yields the unknown-duration fallback.
func FormatBlockLength(p *message.Printer, blocked, expiry time.Time) string {
	if expiry.IsZero() || !expiry.After(blocked) {
		return p.Sprintf("unknown duration")
	}

	remaining := int(expiry.Sub(blocked) / time.Second)
	var parts []string
	for _, unit := range blockLengthUnits {
		count := remaining / unit.seconds
		remaining %= unit.seconds
		if count == 0 {
			continue
		}
		name := unit.plural
		if count == 1 {
			name = unit.singular
		}
		parts = append(parts, fmt.Sprintf("%d %s", count, p.Sprintf(name)))
	}
	return strings.Join(parts, ", ")
}
