package domain

import (
	"context"
	"fmt"
	"log"

	"github.com/xqbot/vmbot/internal/wiki"
)

// Notice is one talk-page notification about a report thread.
type Notice struct {
	Defendant     string
	Accuser       string
	SignatureTime string
	Section       string
}

// NoticeRecorder persists sent notices for operators. Implementations must
// not influence notification decisions; deduplication is the SeenSet's job.
type NoticeRecorder interface {
	RecordNotice(ctx context.Context, notice Notice) error
}

// Notifier posts a templated note to a reported user's talk page once per
// report thread, subject to opt-out lists, an experience threshold, and the
// bounded seen-set.
type Notifier struct {
	store     wiki.PageStore
	users     wiki.UserDirectory
	optOut    *OptOutLists
	seen      *SeenSet
	recorder  NoticeRecorder
	project   Project
	variant   string // the -projectpage option value, used in edit summaries
	threshold int    // minimum edit count for an experienced defendant
	prefix    string
}

// NewNotifier creates a notifier for one coordination page variant.
// recorder may be nil.
func NewNotifier(store wiki.PageStore, users wiki.UserDirectory, optOut *OptOutLists, seen *SeenSet, recorder NoticeRecorder, variant string, project Project, threshold int) *Notifier {
	return &Notifier{
		store:     store,
		users:     users,
		optOut:    optOut,
		seen:      seen,
		recorder:  recorder,
		project:   project,
		variant:   variant,
		threshold: threshold,
		prefix:    TemplatePrefix,
	}
}

// Run walks the sectioned page and notifies each eligible defendant. In boot
// mode every thread is recorded as seen but nobody is messaged, so a restart
// does not flood talk pages with the existing backlog.
func (n *Notifier) Run(ctx context.Context, sections []Section, bootMode bool) error {
	for _, section := range sections {
		defendant := DefendantFromHeader(section.Header)
		if defendant == "" {
			continue
		}
		defendant = FirstUpper(defendant)

		// Network addresses are never notified.
		if IsIPv4(defendant) {
			continue
		}
		if IsClosed(section.Header) {
			continue
		}

		info, err := n.users.UserInfo(ctx, defendant)
		if err != nil {
			if isPermanentLookupError(err) {
				log.Printf("cannot resolve defendant %q, skipping: %v", defendant, err)
				continue
			}
			return fmt.Errorf("look up defendant %q: %w", defendant, err)
		}
		if !info.Registered || info.Bot {
			continue
		}

		accuser, timestamp := AccuserFromBody(section.Body)
		if accuser == "" {
			log.Printf("no accuser signature found for %q, skipping", defendant)
			continue
		}
		log.Printf("defendant: %s, accuser: %s, time: %s", defendant, accuser, timestamp)

		key := SeenKey{Defendant: defendant, Timestamp: timestamp}
		if n.seen.Contains(key) {
			continue
		}

		if n.optOut.ReceiverOptedOut(defendant) {
			log.Printf("ignoring opted-out defendant %s", defendant)
			n.seen.Record(key)
			continue
		}
		if n.optOut.AccuserOptedOut(accuser) {
			log.Printf("%s notifies personally (opt-out), skipping", accuser)
			n.seen.Record(key)
			continue
		}
		if info.EditCount < n.threshold || !info.Autoconfirmed {
			n.seen.Record(key)
			continue
		}

		if bootMode {
			log.Printf("boot mode, not messaging %s", defendant)
			n.seen.Record(key)
			continue
		}

		if err := n.notify(ctx, section, defendant, accuser, timestamp, key); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) notify(ctx context.Context, section Section, defendant, accuser, timestamp string, key SeenKey) error {
	talkTitle := wiki.UserTalkTitle(defendant)
	talk, err := n.store.GetPage(ctx, talkTitle)
	if err != nil {
		return fmt.Errorf("read talk page %q: %w", talkTitle, err)
	}

	sectionTitle := CleanHeader(section.Header)
	accuserLink := fmt.Sprintf("Benutzer:%s{{subst:!}}%s", accuser, accuser)
	if IsIPv4(accuser) {
		accuserLink = fmt.Sprintf("Spezial:Beiträge/%s{{subst:!}}%s", accuser, accuser)
	}
	variantArg := ""
	if n.project.Conflict {
		variantArg = "|Seite=Konfliktmeldung"
	}
	addition := fmt.Sprintf("\n{{subst:%s%s|Melder=%s|Abschnitt=%s%s}}",
		n.prefix, MessageTemplate, accuserLink, sectionTitle, variantArg)

	// Recorded before the write on purpose: a failed put must not cause a
	// duplicate message on the retry of the whole cycle.
	n.seen.Record(key)

	summary := fmt.Sprintf("Bot: Benachrichtigung zu [[Wikipedia:%s#%s]]", n.variant, sectionTitle)
	log.Printf("notifying %s about %s", defendant, sectionTitle)
	if err := n.store.PutTalk(ctx, talkTitle, talk.Text+addition, summary); err != nil {
		return fmt.Errorf("write talk page %q: %w", talkTitle, err)
	}

	if n.recorder != nil {
		if err := n.recorder.RecordNotice(ctx, Notice{
			Defendant:     defendant,
			Accuser:       accuser,
			SignatureTime: timestamp,
			Section:       sectionTitle,
		}); err != nil {
			log.Printf("record notice for %s: %v", defendant, err)
		}
	}
	return nil
}
