package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/xqbot/vmbot/internal/wiki"
)

// fakeLogQuery replays a fixed event list and records the query parameters.
type fakeLogQuery struct {
	events  map[string][]wiki.LogEvent
	err     error
	lastEnd time.Time
	lastN   int
}

func (f *fakeLogQuery) LogEvents(ctx context.Context, logType string, end time.Time, limit int) ([]wiki.LogEvent, error) {
	f.lastEnd = end
	f.lastN = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.events[logType], nil
}

// windowedLogQuery replays only the events at or after the query's end
// boundary, the way the live log API honors the cursor.
type windowedLogQuery struct {
	events map[string][]wiki.LogEvent
}

func (f *windowedLogQuery) LogEvents(ctx context.Context, logType string, end time.Time, limit int) ([]wiki.LogEvent, error) {
	var out []wiki.LogEvent
	for _, ev := range f.events[logType] {
		if ev.Timestamp.Before(end) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// fakeUserDirectory serves canned user info keyed by name.
type fakeUserDirectory struct {
	users map[string]wiki.UserInfo
	errs  map[string]error
	calls []string
}

func (f *fakeUserDirectory) UserInfo(ctx context.Context, name string) (wiki.UserInfo, error) {
	f.calls = append(f.calls, name)
	if err, ok := f.errs[name]; ok {
		return wiki.UserInfo{}, err
	}
	info, ok := f.users[name]
	if !ok {
		return wiki.UserInfo{}, fmt.Errorf("unexpected lookup of %q", name)
	}
	return info, nil
}

// talkWrite captures one PutTalk call.
type talkWrite struct {
	title   string
	text    string
	summary string
}

// fakePageStore holds page snapshots and records writes.
type fakePageStore struct {
	pages      map[string]wiki.PageSnapshot
	links      map[string][]string
	putErr     error
	putTalkErr error
	puts       []talkWrite
	talkPuts   []talkWrite
}

func (f *fakePageStore) GetPage(ctx context.Context, title string) (wiki.PageSnapshot, error) {
	snap, ok := f.pages[title]
	if !ok {
		return wiki.PageSnapshot{Title: title}, nil
	}
	return snap, nil
}

func (f *fakePageStore) PutPage(ctx context.Context, title, text string, expectedRevID int64, summary string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts = append(f.puts, talkWrite{title: title, text: text, summary: summary})
	return nil
}

func (f *fakePageStore) PutTalk(ctx context.Context, title, text, summary string) error {
	if f.putTalkErr != nil {
		return f.putTalkErr
	}
	f.talkPuts = append(f.talkPuts, talkWrite{title: title, text: text, summary: summary})
	return nil
}

func (f *fakePageStore) LinkedUsers(ctx context.Context, title string) ([]string, error) {
	return f.links[title], nil
}

// fakeRecorder collects recorded notices.
type fakeRecorder struct {
	notices []Notice
	err     error
}

func (f *fakeRecorder) RecordNotice(ctx context.Context, notice Notice) error {
	if f.err != nil {
		return f.err
	}
	f.notices = append(f.notices, notice)
	return nil
}
