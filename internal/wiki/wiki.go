// Package wiki defines the collaborator boundary of the bot: page storage,
// the administrative log, user metadata, and the live change feed. The bot
// core depends only on these interfaces; internal/wiki/mediawiki and
// internal/wiki/feed provide the HTTP-backed implementations.
package wiki

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Well-known namespace identifiers.
const (
	NamespaceArticle  = 0
	NamespaceUser     = 2
	NamespaceUserTalk = 3
)

// Sentinel errors reported by PageStore implementations.
var (
	// ErrConflict reports that the page was edited between read and write.
	ErrConflict = errors.New("wiki: edit conflict")
	// ErrNotSaved reports that the store rejected the write for a reason
	// other than a conflict. The write may be retried.
	ErrNotSaved = errors.New("wiki: page not saved")
	// ErrPageMissing reports that the requested page does not exist.
	ErrPageMissing = errors.New("wiki: page does not exist")
	// ErrInvalidName reports that a user or page name cannot exist, e.g. a
	// malformed title picked up from free text.
	ErrInvalidName = errors.New("wiki: invalid name")
)

// PageSnapshot is a page's text together with the revision identifier used
// for optimistic concurrency.
type PageSnapshot struct {
	Title  string
	Text   string
	RevID  int64
	Exists bool
}

// PageStore exposes page retrieval and the two write shapes the bot needs:
// a conditional whole-page replacement and a plain talk-page put.
type PageStore interface {
	// GetPage returns the current snapshot of a page. A missing page is
	// reported with Exists false, not an error.
	GetPage(ctx context.Context, title string) (PageSnapshot, error)

	// PutPage replaces the page text if its latest revision still equals
	// expectedRevID. Returns ErrConflict when it does not, ErrNotSaved on
	// a rejected write.
	PutPage(ctx context.Context, title, text string, expectedRevID int64, summary string) error

	// PutTalk appends-by-replacement without a revision precondition.
	PutTalk(ctx context.Context, title, text, summary string) error

	// LinkedUsers returns the user names linked from a page, restricted to
	// the user and user-talk namespaces, with subpage suffixes stripped.
	LinkedUsers(ctx context.Context, title string) ([]string, error)
}

// Restrictions describes a partial block: the pages and/or namespaces the
// block is limited to. Nil means a site-wide action.
type Restrictions struct {
	Pages      []string
	Namespaces []int
}

// LogEvent is one raw administrative log entry.
type LogEvent struct {
	Action      string // e.g. "block", "reblock", "protect"
	Page        string // subject page title, without namespace for users
	PageHidden  bool   // subject suppressed by oversight
	Actor       string
	Timestamp   time.Time
	Comment     string
	Duration    string // raw duration, e.g. "2 weeks", "infinite", or ""
	Description string // human-readable protection summary, protect log only
	Expiry      time.Time
	EditProtect bool // protect log only: protection covers editing
	NamespaceID int
	Restrict    *Restrictions
}

// LogQuery reads the administrative event log.
type LogQuery interface {
	// LogEvents returns up to limit entries of the given log type, newest
	// first, no older than end.
	LogEvents(ctx context.Context, logType string, end time.Time, limit int) ([]LogEvent, error)
}

// UserInfo is the identity metadata the bot consults before acting.
type UserInfo struct {
	Name          string
	Registered    bool
	Bot           bool
	Autoconfirmed bool
	Blocked       bool
	EditCount     int
}

// UserDirectory looks up identity metadata.
type UserDirectory interface {
	UserInfo(ctx context.Context, name string) (UserInfo, error)
}

// RecentChange is one notice from the live change feed. The feed is a
// wake-up signal only; the log query is the authoritative source.
type RecentChange struct {
	Type      string // "log", "edit", ...
	LogType   string
	LogAction string
	Actor     string
	Title     string
	Bot       bool
}

// Feed is a blocking stream of change notices.
type Feed interface {
	// Next blocks until a notice arrives or ctx is done.
	Next(ctx context.Context) (RecentChange, error)
}

// UserTalkTitle returns the talk page title for a user name.
func UserTalkTitle(name string) string {
	return "Benutzer Diskussion:" + name
}

// StripSubpage returns a title with any subpage suffix removed.
func StripSubpage(title string) string {
	if i := strings.IndexByte(title, '/'); i >= 0 {
		return title[:i]
	}
	return title
}
