// Package locale registers the bot's output vocabulary with x/text. The bot
// writes German, matching the project it clerks for; the vocabulary is keyed
// by the English terms the log API reports so the formatting layer stays
// language-neutral.
package locale

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// German is the output language of the coordination pages the bot serves.
var German = language.German

var germanTerms = map[string]string{
	// log API duration tokens
	"gmt":        "UTC",
	"mon":        "Montag",
	"sat":        "Samstag",
	"sun":        "Sonntag",
	"second":     "Sekunde",
	"seconds":    "Sekunden",
	"min":        "Min.",
	"minute":     "Minute",
	"minutes":    "Minuten",
	"hour":       "Stunde",
	"hours":      "Stunden",
	"day":        "Tag",
	"days":       "Tage",
	"week":       "Woche",
	"weeks":      "Wochen",
	"month":      "Monat",
	"months":     "Monate",
	"year":       "Jahr",
	"years":      "Jahre",
	"infinite":   "unbeschränkte Zeit",
	"infinity":   "unbegrenzt",
	"indefinite": "unbestimmte Zeit",

	// formatter fragments
	"unknown duration": "unbekannte Zeit",
	"for":              "für",
	"and":              "und",
	"the page":         "die Seite",
	"the pages":        "die Seiten",
	"the namespace":    "den Namensraum",
	"the namespaces":   "die Namensräume",
}

func init() {
	for key, text := range germanTerms {
		message.SetString(German, key, text)
	}
}

// NewPrinter returns a printer for the bot's output language.
func NewPrinter() *message.Printer {
	return message.NewPrinter(German)
}
