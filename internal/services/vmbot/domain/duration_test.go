package domain

import (
	"testing"
	"time"

	"github.com/xqbot/vmbot/internal/services/vmbot/locale"
)

func TestTranslateDuration(t *testing.T) {
	p := locale.NewPrinter()
	tests := []struct {
		raw  string
		want string
	}{
		{"2 weeks", "2 Wochen"},
		{"1 week", "1 Woche"},
		{"3 days", "3 Tage"},
		{"6 hours", "6 Stunden"},
		{"indefinite", "unbestimmte Zeit"},
		{"infinite", "unbeschränkte Zeit"},
		{"1 fortnight", "1 fortnight"},
	}
	for _, tt := range tests {
		if got := TranslateDuration(p, tt.raw); got != tt.want {
			t.Errorf("TranslateDuration(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestFormatBlockLength(t *testing.T) {
	p := locale.NewPrinter()
	blocked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		want   string
	}{
		{"no expiry", time.Time{}, "unbekannte Zeit"},
		{"already expired", blocked.Add(-time.Hour), "unbekannte Zeit"},
		{"three days", blocked.AddDate(0, 0, 3), "3 Tage"},
		{"ninety days", blocked.AddDate(0, 0, 90), "12 Wochen, 6 Tage"},
		{"one hour", blocked.Add(time.Hour), "1 Stunde"},
		{"mixed", blocked.Add(25*time.Hour + 30*time.Minute), "1 Tag, 1 Stunde, 30 Minuten"},
		{"one year", blocked.AddDate(0, 0, 365), "1 Jahr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatBlockLength(p, blocked, tt.expiry); got != tt.want {
				t.Errorf("FormatBlockLength() = %q, want %q", got, tt.want)
			}
		})
	}
}
