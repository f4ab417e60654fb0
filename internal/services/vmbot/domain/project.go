package domain

import "time"

// TemplatePrefix is the user subpage carrying the clerk templates.
const TemplatePrefix = "Benutzer:Xqbot/"

// List pages and templates the notifier depends on, all under the bot's
// user space.
const (
	OptOutReceiversPage = TemplatePrefix + "Opt-out: VM-Nachrichtenempfänger"
	OptOutAccusersPage  = TemplatePrefix + "Opt-out: VM-Steller"
	MessageTemplate     = "Botvorlage: Info zur VM-Meldung"
)

// VoluntaryBlockPhrase in a block reason marks a self-requested block; such
// reports are left open for human review.
const VoluntaryBlockPhrase = "Sperrung auf eigenen Wunsch"

// Project describes one coordination page the bot can clerk for.
type Project struct {
	Page     string // coordination page title
	HeadNote string // note written into closed headlines
	Conflict bool   // true for the conflict-report variant of the talk message
}

// Projects maps the -projectpage option to its coordination page.
var Projects = map[string]Project{
	"VM":   {Page: "Wikipedia:Vandalismusmeldung", HeadNote: "erl."},
	"test": {Page: "Benutzer:Xqbot/Test", HeadNote: "erl."},
}

// CursorFloor is the conservative lower bound the event cursor is reset to,
// both at startup and on the periodic rescan.
var CursorFloor = time.Date(2020, 10, 23, 1, 23, 45, 0, time.UTC)

// Batch sizes for the event log query. The first pass uses the wide startup
// batch; later passes use the steady-state size, which was raised from 10
// after it proved too low in practice.
const (
	StartupBatchSize = 50
	SteadyBatchSize  = 15
)
