package storage

import (
	"context"
	"time"
)

// CaseRecord is one durable record of a report the bot closed.
type CaseRecord struct {
	ID       int64
	Subject  string
	Admin    string
	Duration string
	Reason   string
	Project  string
	ClosedAt time.Time
}

// NoticeRecord is one durable record of a talk-page notification.
type NoticeRecord struct {
	ID            int64
	Defendant     string
	Accuser       string
	SignatureTime string
	Section       string
	Project       string
	SentAt        time.Time
}

// Journal persists what the bot did, for operators. It is write-mostly and
// never consulted for dedup decisions.
type Journal interface {
	RecordCase(ctx context.Context, record CaseRecord) error
	RecordNotice(ctx context.Context, record NoticeRecord) error
	ListCases(ctx context.Context, limit int) ([]CaseRecord, error)
	ListNotices(ctx context.Context, limit int) ([]NoticeRecord, error)
}
