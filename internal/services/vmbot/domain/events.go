package domain

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/text/message"

	"github.com/xqbot/vmbot/internal/wiki"
)

// NoReasonGiven is the fallback for log entries without a stated reason.
const NoReasonGiven = "<keine angegeben>"

// ActionRecord is one normalized administrative event relevant to report
// closing. Immutable once loaded; consumed by the resolver in the same
// cycle.
type ActionRecord struct {
	Subject    string // user name, or page title for protections
	Admin      string
	Timestamp  time.Time
	Duration   string // human-readable
	Reason     string
	Restrict   *wiki.Restrictions // partial blocks only
	Protection bool               // page protection rather than a user block
}

// EventLoader queries the administrative log for actions after the stored
// cursors and normalizes them into ActionRecords. Each log type keeps its
// own cursor: the block and protect logs move at different speeds, and a
// shared boundary would skip past quiet-log events that were never seen. A
// cursor only moves forward: it is advanced to the newest seen timestamp
// plus one second so the next query excludes already-processed events.
type EventLoader struct {
	logq    wiki.LogQuery
	printer *message.Printer
	cursors map[string]time.Time
	limit   int
}

// NewEventLoader creates a loader starting at the cursor floor with the
// startup batch size.
func NewEventLoader(logq wiki.LogQuery, printer *message.Printer) *EventLoader {
	return &EventLoader{
		logq:    logq,
		printer: printer,
		cursors: make(map[string]time.Time),
		limit:   StartupBatchSize,
	}
}

// ResetCursor moves every cursor back to the conservative floor so recently
// missed events are scanned again.
func (l *EventLoader) ResetCursor() {
	clear(l.cursors)
}

// SetLimit changes the query batch size.
func (l *EventLoader) SetLimit(limit int) {
	if limit > 0 {
		l.limit = limit
	}
}

// Cursor returns the current cursor position for one log type.
func (l *EventLoader) Cursor(logType string) time.Time {
	if cursor, ok := l.cursors[logType]; ok {
		return cursor
	}
	return CursorFloor
}

// LoadBlocks returns the user blocks newer than the cursor, newest first,
// and advances the cursor past them.
func (l *EventLoader) LoadBlocks(ctx context.Context, actions []string) ([]ActionRecord, error) {
	events, err := l.logq.LogEvents(ctx, "block", l.Cursor("block"), l.limit)
	if err != nil {
		return nil, fmt.Errorf("load block events: %w", err)
	}

	accepted := make(map[string]bool, len(actions))
	for _, action := range actions {
		accepted[action] = true
	}

	var records []ActionRecord
	for _, ev := range events {
		if !accepted[ev.Action] {
			continue
		}
		if ev.PageHidden {
			// subject suppressed by oversight
			continue
		}
		records = append(records, ActionRecord{
			Subject:   ev.Page,
			Admin:     ev.Actor,
			Timestamp: ev.Timestamp,
			Duration:  l.blockLength(ev),
			Reason:    reasonOrFallback(ev.Comment),
			Restrict:  ev.Restrict,
		})
	}
	l.advance("block", events)
	return records, nil
}

// LoadProtections returns the page protections newer than the cursor that
// cover editing, newest first, and advances the cursor past them. Move-only
// protections and protections of user pages are skipped.
func (l *EventLoader) LoadProtections(ctx context.Context) ([]ActionRecord, error) {
	events, err := l.logq.LogEvents(ctx, "protect", l.Cursor("protect"), l.limit)
	if err != nil {
		return nil, fmt.Errorf("load protect events: %w", err)
	}

	var records []ActionRecord
	for _, ev := range events {
		if ev.Action != "protect" {
			continue
		}
		if ev.PageHidden {
			continue
		}
		if !ev.EditProtect {
			continue
		}
		if ev.NamespaceID == wiki.NamespaceUser || ev.NamespaceID == wiki.NamespaceUserTalk {
			continue
		}
		records = append(records, ActionRecord{
			Subject:    ev.Page,
			Admin:      ev.Actor,
			Timestamp:  ev.Timestamp,
			Duration:   cleanProtectionDescription(ev.Description),
			Reason:     reasonOrFallback(ev.Comment),
			Protection: true,
		})
	}
	l.advance("protect", events)
	return records, nil
}

// advance moves one log type's cursor one second past the newest event, or
// leaves it unchanged when the batch was empty. Events arrive newest first.
func (l *EventLoader) advance(logType string, events []wiki.LogEvent) {
	if len(events) == 0 {
		return
	}
	newest := events[0].Timestamp
	for _, ev := range events[1:] {
		if ev.Timestamp.After(newest) {
			newest = ev.Timestamp
		}
	}
	l.cursors[logType] = newest.Add(time.Second)
	log.Printf("new %s cursor: %s", logType, l.cursors[logType].UTC().Format("20060102150405"))
}

// blockLength derives the human-readable block duration for one log entry.
// An explicit expiry timestamp (duration strings ending in "GMT") and a
// missing duration both fall back to the expiry delta, which itself degrades
// to the unknown-duration string when the expiry is absent.
func (l *EventLoader) blockLength(ev wiki.LogEvent) string {
	if ev.Duration == "" || strings.HasSuffix(ev.Duration, "GMT") {
		return FormatBlockLength(l.printer, ev.Timestamp, ev.Expiry)
	}
	return TranslateDuration(l.printer, ev.Duration)
}

func reasonOrFallback(comment string) string {
	if strings.TrimSpace(comment) == "" {
		return NoReasonGiven
	}
	return comment
}

// cleanProtectionDescription strips the direction marks the log API embeds
// in protection summaries.
func cleanProtectionDescription(description string) string {
	description = strings.Trim(description, "‎")
	return strings.ReplaceAll(description, "‎", " ")
}
