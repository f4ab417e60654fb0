package domain

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/xqbot/vmbot/internal/wiki"
)

// OptOutLists caches the two opt-out sets the notifier consults: users who
// do not want to receive report notices, and accusers who notify reported
// users themselves. The sets are reloaded lazily once they exceed maxAge.
type OptOutLists struct {
	store         wiki.PageStore
	receiversPage string
	accusersPage  string
	maxAge        time.Duration
	clock         func() time.Time

	loadedAt  time.Time
	receivers map[string]bool
	accusers  map[string]bool
}

// NewOptOutLists creates an empty, stale cache; the first Refresh loads it.
func NewOptOutLists(store wiki.PageStore, maxAge time.Duration, clock func() time.Time) *OptOutLists {
	if clock == nil {
		clock = time.Now
	}
	return &OptOutLists{
		store:         store,
		receiversPage: OptOutReceiversPage,
		accusersPage:  OptOutAccusersPage,
		maxAge:        maxAge,
		clock:         clock,
	}
}

// Refresh reloads both lists when the cache is stale, otherwise does
// nothing. An empty receiver list keeps the cache stale so the next cycle
// reads it again.
func (l *OptOutLists) Refresh(ctx context.Context) error {
	if !l.loadedAt.IsZero() && l.clock().Sub(l.loadedAt) <= l.maxAge {
		return nil
	}

	log.Printf("reading opt-out lists")
	receivers, err := l.load(ctx, l.receiversPage)
	if err != nil {
		return fmt.Errorf("load receiver opt-outs: %w", err)
	}
	accusers, err := l.load(ctx, l.accusersPage)
	if err != nil {
		return fmt.Errorf("load accuser opt-outs: %w", err)
	}
	l.receivers = receivers
	l.accusers = accusers
	log.Printf("opt-out receivers: %d, opt-out accusers: %d", len(receivers), len(accusers))

	if len(receivers) == 0 {
		l.loadedAt = time.Time{}
	} else {
		l.loadedAt = l.clock()
	}
	return nil
}

func (l *OptOutLists) load(ctx context.Context, page string) (map[string]bool, error) {
	users, err := l.store.LinkedUsers(ctx, page)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(users))
	for _, user := range users {
		set[wiki.StripSubpage(user)] = true
	}
	return set, nil
}

// ReceiverOptedOut reports whether the user declined report notices.
func (l *OptOutLists) ReceiverOptedOut(name string) bool {
	return l.receivers[name]
}

// AccuserOptedOut reports whether the accuser notifies defendants personally.
func (l *OptOutLists) AccuserOptedOut(name string) bool {
	return l.accusers[name]
}
