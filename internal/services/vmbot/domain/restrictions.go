package domain

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/message"

	"github.com/xqbot/vmbot/internal/wiki"
)

// FormatRestrictions renders a partial-block descriptor as a human-readable
// fragment, e.g. "für die Seite [[X]] und den Namensraum 0". Returns the
// empty string for a site-wide action.
func FormatRestrictions(p *message.Printer, r *wiki.Restrictions) string {
	if r == nil || (len(r.Pages) == 0 && len(r.Namespaces) == 0) {
		return ""
	}

	var where []string
	if len(r.Pages) > 0 {
		label := p.Sprintf("the pages")
		if len(r.Pages) == 1 {
			label = p.Sprintf("the page")
		}
		where = append(where, label+" [["+strings.Join(r.Pages, "]], [[")+"]]")
	}
	if len(r.Namespaces) > 0 {
		namespaces := append([]int(nil), r.Namespaces...)
		sort.Ints(namespaces)
		formatted := make([]string, len(namespaces))
		for i, ns := range namespaces {
			formatted[i] = fmt.Sprintf("%d", ns)
		}
		label := p.Sprintf("the namespaces")
		if len(namespaces) == 1 {
			label = p.Sprintf("the namespace")
		}
		where = append(where, label+" "+strings.Join(formatted, ", "))
	}
	return p.Sprintf("for") + " " + strings.Join(where, " "+p.Sprintf("and")+" ")
}
