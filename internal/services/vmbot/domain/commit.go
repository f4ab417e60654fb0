package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/xqbot/vmbot/internal/wiki"
)

// CommitOutcome reports how a commit attempt ended. Conflict and Retry are
// ordinary outcomes, not errors: the caller discards its in-memory mutations
// and restarts the whole cycle from a fresh snapshot.
type CommitOutcome int

const (
	// CommitNoChange means the rebuilt text equals the original; no write
	// was attempted.
	CommitNoChange CommitOutcome = iota
	// Committed means the conditional write succeeded.
	Committed
	// CommitConflict means the page changed between read and write.
	CommitConflict
	// CommitRetry means the store rejected the write transiently.
	CommitRetry
)

// Commit writes the rebuilt page text as a single whole-document
// replacement, conditional on the revision observed in snap. The revision is
// re-checked immediately before writing to catch concurrent edits early.
func Commit(ctx context.Context, store wiki.PageStore, snap wiki.PageSnapshot, text, summary string) (CommitOutcome, error) {
	if text == snap.Text {
		return CommitNoChange, nil
	}

	current, err := store.GetPage(ctx, snap.Title)
	if err != nil {
		return CommitRetry, fmt.Errorf("re-read %q: %w", snap.Title, err)
	}
	if current.RevID != snap.RevID {
		return CommitConflict, nil
	}

	err = store.PutPage(ctx, snap.Title, text, snap.RevID, summary)
	switch {
	case err == nil:
		return Committed, nil
	case errors.Is(err, wiki.ErrConflict):
		return CommitConflict, nil
	case errors.Is(err, wiki.ErrNotSaved):
		return CommitRetry, nil
	default:
		return CommitRetry, fmt.Errorf("write %q: %w", snap.Title, err)
	}
}
