package domain

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/xqbot/vmbot/internal/wiki"
)

const reportBody = "Hat den Artikel X geleert. --[[Benutzer:Carol|Carol]] 11:46, 15. Nov. 2025 (CET)\n"

func newTestNotifier(store *fakePageStore, users *fakeUserDirectory, recorder NoticeRecorder) (*Notifier, *SeenSet, *OptOutLists) {
	seen := NewSeenSet(50)
	optOut := NewOptOutLists(store, 6*time.Hour, nil)
	notifier := NewNotifier(store, users, optOut, seen, recorder, "VM", Projects["VM"], 10)
	return notifier, seen, optOut
}

func experiencedUser(name string) wiki.UserInfo {
	return wiki.UserInfo{Name: name, Registered: true, Autoconfirmed: true, EditCount: 500}
}

func TestNotifierMessagesDefendant(t *testing.T) {
	store := &fakePageStore{pages: map[string]wiki.PageSnapshot{
		"Benutzer Diskussion:Alice": {
			Title: "Benutzer Diskussion:Alice", Text: "Bisherige Diskussion.", RevID: 1, Exists: true,
		},
	}}
	users := &fakeUserDirectory{users: map[string]wiki.UserInfo{
		"Alice": experiencedUser("Alice"),
	}}
	recorder := &fakeRecorder{}
	notifier, seen, _ := newTestNotifier(store, users, recorder)

	sections := []Section{{Header: "== [[Benutzer:Alice]] ==\n", Body: reportBody}}
	if err := notifier.Run(context.Background(), sections, false); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(store.talkPuts) != 1 {
		t.Fatalf("got %d talk writes, want 1", len(store.talkPuts))
	}
	put := store.talkPuts[0]
	if put.title != "Benutzer Diskussion:Alice" {
		t.Errorf("talk title = %q", put.title)
	}
	if !strings.HasPrefix(put.text, "Bisherige Diskussion.") {
		t.Error("existing talk text not preserved")
	}
	want := "{{subst:Benutzer:Xqbot/Botvorlage: Info zur VM-Meldung|Melder=Benutzer:Carol{{subst:!}}Carol|Abschnitt=Benutzer:Alice}}"
	if !strings.Contains(put.text, want) {
		t.Errorf("talk text = %q, want to contain %q", put.text, want)
	}
	if put.summary != "Bot: Benachrichtigung zu [[Wikipedia:VM#Benutzer:Alice]]" {
		t.Errorf("summary = %q", put.summary)
	}

	key := SeenKey{Defendant: "Alice", Timestamp: "2025 Nov 15 11:46"}
	if !seen.Contains(key) {
		t.Error("notified thread not recorded as seen")
	}
	if len(recorder.notices) != 1 || recorder.notices[0].Defendant != "Alice" {
		t.Errorf("recorded notices = %+v", recorder.notices)
	}
}

func TestNotifierSkipsSeenThread(t *testing.T) {
	store := &fakePageStore{}
	users := &fakeUserDirectory{users: map[string]wiki.UserInfo{
		"Alice": experiencedUser("Alice"),
	}}
	notifier, seen, _ := newTestNotifier(store, users, nil)
	seen.Record(SeenKey{Defendant: "Alice", Timestamp: "2025 Nov 15 11:46"})

	sections := []Section{{Header: "== [[Benutzer:Alice]] ==\n", Body: reportBody}}
	if err := notifier.Run(context.Background(), sections, false); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.talkPuts) != 0 {
		t.Error("seen thread was messaged again")
	}
}

func TestNotifierSkipsIneligibleDefendants(t *testing.T) {
	tests := []struct {
		name   string
		header string
		info   wiki.UserInfo
	}{
		{
			"unregistered",
			"== [[Benutzer:Niemand]] ==\n",
			wiki.UserInfo{Name: "Niemand"},
		},
		{
			"bot account",
			"== [[Benutzer:Botkonto]] ==\n",
			wiki.UserInfo{Name: "Botkonto", Registered: true, Bot: true, Autoconfirmed: true, EditCount: 9000},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakePageStore{}
			users := &fakeUserDirectory{users: map[string]wiki.UserInfo{tt.info.Name: tt.info}}
			notifier, _, _ := newTestNotifier(store, users, nil)

			sections := []Section{{Header: tt.header, Body: reportBody}}
			if err := notifier.Run(context.Background(), sections, false); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(store.talkPuts) != 0 {
				t.Error("ineligible defendant was messaged")
			}
		})
	}
}

func TestNotifierSkipsIPAndClosedSections(t *testing.T) {
	store := &fakePageStore{}
	users := &fakeUserDirectory{users: map[string]wiki.UserInfo{
		"Alice": experiencedUser("Alice"),
	}}
	notifier, _, _ := newTestNotifier(store, users, nil)

	sections := []Section{
		{Header: "== [[Spezial:Beiträge/192.0.2.7|192.0.2.7]] ==\n", Body: reportBody},
		{Header: "== [[Benutzer:Alice]] (erl.) ==\n", Body: reportBody},
		{Header: "== kein Benutzerlink ==\n", Body: reportBody},
	}
	if err := notifier.Run(context.Background(), sections, false); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.talkPuts) != 0 {
		t.Errorf("got %d talk writes, want 0", len(store.talkPuts))
	}
	if len(users.calls) != 0 {
		t.Errorf("user lookups = %v, want none", users.calls)
	}
}

func TestNotifierOptOutRecordsKeyWithoutMessage(t *testing.T) {
	store := &fakePageStore{links: map[string][]string{
		OptOutReceiversPage: {"Alice"},
	}}
	users := &fakeUserDirectory{users: map[string]wiki.UserInfo{
		"Alice": experiencedUser("Alice"),
	}}
	notifier, seen, optOut := newTestNotifier(store, users, nil)
	if err := optOut.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	sections := []Section{{Header: "== [[Benutzer:Alice]] ==\n", Body: reportBody}}
	if err := notifier.Run(context.Background(), sections, false); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(store.talkPuts) != 0 {
		t.Error("opted-out defendant was messaged")
	}
	key := SeenKey{Defendant: "Alice", Timestamp: "2025 Nov 15 11:46"}
	if !seen.Contains(key) {
		t.Error("skipped thread not recorded, would be re-examined forever")
	}
}

func TestNotifierAccuserOptOut(t *testing.T) {
	store := &fakePageStore{links: map[string][]string{
		OptOutReceiversPage: {"Sonstwer"},
		OptOutAccusersPage:  {"Carol"},
	}}
	users := &fakeUserDirectory{users: map[string]wiki.UserInfo{
		"Alice": experiencedUser("Alice"),
	}}
	notifier, seen, optOut := newTestNotifier(store, users, nil)
	if err := optOut.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	sections := []Section{{Header: "== [[Benutzer:Alice]] ==\n", Body: reportBody}}
	if err := notifier.Run(context.Background(), sections, false); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.talkPuts) != 0 {
		t.Error("defendant messaged although accuser notifies personally")
	}
	if seen.Len() != 1 {
		t.Error("skipped thread not recorded as seen")
	}
}

func TestNotifierSkipsInexperiencedDefendant(t *testing.T) {
	store := &fakePageStore{}
	users := &fakeUserDirectory{users: map[string]wiki.UserInfo{
		"Alice": {Name: "Alice", Registered: true, Autoconfirmed: true, EditCount: 3},
	}}
	notifier, seen, _ := newTestNotifier(store, users, nil)

	sections := []Section{{Header: "== [[Benutzer:Alice]] ==\n", Body: reportBody}}
	if err := notifier.Run(context.Background(), sections, false); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.talkPuts) != 0 {
		t.Error("inexperienced defendant was messaged")
	}
	if seen.Len() != 1 {
		t.Error("skipped thread not recorded as seen")
	}
}

func TestNotifierBootMode(t *testing.T) {
	store := &fakePageStore{}
	users := &fakeUserDirectory{users: map[string]wiki.UserInfo{
		"Alice": experiencedUser("Alice"),
	}}
	notifier, seen, _ := newTestNotifier(store, users, nil)

	sections := []Section{{Header: "== [[Benutzer:Alice]] ==\n", Body: reportBody}}
	if err := notifier.Run(context.Background(), sections, true); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(store.talkPuts) != 0 {
		t.Error("boot mode sent a message")
	}
	key := SeenKey{Defendant: "Alice", Timestamp: "2025 Nov 15 11:46"}
	if !seen.Contains(key) {
		t.Error("boot mode did not record the backlog thread")
	}

	// The next regular cycle must not message the backlog either.
	if err := notifier.Run(context.Background(), sections, false); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(store.talkPuts) != 0 {
		t.Error("backlog thread messaged after boot mode")
	}
}

func TestNotifierLowercaseDefendantCanonicalised(t *testing.T) {
	store := &fakePageStore{}
	users := &fakeUserDirectory{users: map[string]wiki.UserInfo{
		"Alice": experiencedUser("Alice"),
	}}
	notifier, _, _ := newTestNotifier(store, users, nil)

	sections := []Section{{Header: "== [[Benutzer:alice]] ==\n", Body: reportBody}}
	if err := notifier.Run(context.Background(), sections, false); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(users.calls) != 1 || users.calls[0] != "Alice" {
		t.Errorf("lookups = %v, want [Alice]", users.calls)
	}
	if len(store.talkPuts) != 1 {
		t.Errorf("got %d talk writes, want 1", len(store.talkPuts))
	}
	if store.talkPuts[0].title != "Benutzer Diskussion:Alice" {
		t.Errorf("talk title = %q", store.talkPuts[0].title)
	}
}

func TestNotifierIPAccuserLink(t *testing.T) {
	store := &fakePageStore{}
	users := &fakeUserDirectory{users: map[string]wiki.UserInfo{
		"Alice": experiencedUser("Alice"),
	}}
	notifier, _, _ := newTestNotifier(store, users, nil)

	body := "Meldung. [[Spezial:Beiträge/192.0.2.7|192.0.2.7]] 11:46, 15. Nov. 2025 (CET)\n"
	sections := []Section{{Header: "== [[Benutzer:Alice]] ==\n", Body: body}}
	if err := notifier.Run(context.Background(), sections, false); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.talkPuts) != 1 {
		t.Fatalf("got %d talk writes, want 1", len(store.talkPuts))
	}
	if !strings.Contains(store.talkPuts[0].text, "Melder=Spezial:Beiträge/192.0.2.7{{subst:!}}192.0.2.7") {
		t.Errorf("talk text = %q, want contributions accuser link", store.talkPuts[0].text)
	}
}

func TestNotifierRecorderFailureIsNotFatal(t *testing.T) {
	store := &fakePageStore{}
	users := &fakeUserDirectory{users: map[string]wiki.UserInfo{
		"Alice": experiencedUser("Alice"),
	}}
	recorder := &fakeRecorder{err: context.DeadlineExceeded}
	notifier, _, _ := newTestNotifier(store, users, recorder)

	sections := []Section{{Header: "== [[Benutzer:Alice]] ==\n", Body: reportBody}}
	if err := notifier.Run(context.Background(), sections, false); err != nil {
		t.Fatalf("Run() error = %v, want recorder failure swallowed", err)
	}
	if len(store.talkPuts) != 1 {
		t.Errorf("got %d talk writes, want 1", len(store.talkPuts))
	}
}
