package wiki

import "testing"

func TestUserTalkTitle(t *testing.T) {
	if got := UserTalkTitle("Alice"); got != "Benutzer Diskussion:Alice" {
		t.Errorf("UserTalkTitle(Alice) = %q", got)
	}
}

func TestStripSubpage(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Alice", "Alice"},
		{"Alice/Archiv", "Alice"},
		{"Alice/Archiv/2025", "Alice"},
	}
	for _, tt := range tests {
		if got := StripSubpage(tt.title); got != tt.want {
			t.Errorf("StripSubpage(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
