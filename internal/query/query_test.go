package query

import (
	"strings"
	"testing"
)

func TestEscapeStrict(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain", "plain"},
		{`say "hi"`, `say \"hi\"`},
		{`C:\path`, `C:\\path`},
		{`[KEY-1]`, `\[KEY-1\]`},
		{`"\[]`, `\"\\\[\]`},
	}
	for _, tt := range tests {
		if got := EscapeStrict(tt.in); got != tt.want {
			t.Errorf("EscapeStrict(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeStrictRoundTrip(t *testing.T) {
	inputs := []string{`"`, `\`, `[`, `]`, `a "b" \c [d] e`, `\\"[[]]`, `end\`}
	for _, in := range inputs {
		escaped := EscapeStrict(in)
		if got := UnescapeStrict(escaped); got != in {
			t.Errorf("round trip of %q gave %q", in, got)
		}
		// Every special character is preceded by exactly one backslash.
		runes := []rune(escaped)
		for i := 0; i < len(runes); i++ {
			if runes[i] != '\\' {
				if strings.ContainsRune(`"[]`, runes[i]) {
					t.Errorf("unescaped %q in %q", runes[i], escaped)
				}
				continue
			}
			if i+1 >= len(runes) || !strings.ContainsRune(`\"[]`, runes[i+1]) {
				t.Errorf("dangling backslash in %q", escaped)
			}
			i++
		}
	}
}

func TestEscapeStrip(t *testing.T) {
	got := EscapeStrip(`a "quoted" \ back\slash [kept]`)
	if strings.ContainsAny(got, `"\`) {
		t.Errorf("EscapeStrip left quote or backslash: %q", got)
	}
	if got != "a quoted  backslash [kept]" {
		t.Errorf("unexpected EscapeStrip result %q", got)
	}
	if EscapeStrip("") != "" {
		t.Error("EscapeStrip of empty string should be empty")
	}
}

func TestBuildIssueTrackerQuery(t *testing.T) {
	targeted := BuildIssueTrackerQuery("x", IssueQueryOptions{})
	if targeted != `(summary ~ "x" OR description ~ "x") ORDER BY updated DESC` {
		t.Errorf("unexpected targeted query %q", targeted)
	}

	text := BuildIssueTrackerQuery("x", IssueQueryOptions{SearchMode: SearchText})
	if !strings.Contains(text, `text ~ "x"`) {
		t.Errorf("text mode should use full-text clause: %q", text)
	}
	if strings.Contains(text, " OR ") {
		t.Errorf("text mode should not contain two-field OR clause: %q", text)
	}

	filtered := BuildIssueTrackerQuery(`login "bug"`, IssueQueryOptions{ProjectKey: "OPS", Status: "In Progress"})
	want := `project = "OPS" AND status = "In Progress" AND (summary ~ "login bug" OR description ~ "login bug") ORDER BY updated DESC`
	if filtered != want {
		t.Errorf("got %q, want %q", filtered, want)
	}

	if BuildIssueTrackerQuery("   ", IssueQueryOptions{}) != "" {
		t.Error("blank text should yield empty query")
	}
}

func TestBuildWikiQuery(t *testing.T) {
	got := BuildWikiQuery("deploy guide", WikiQueryOptions{})
	if got != `(title ~ "deploy guide" OR text ~ "deploy guide") ORDER BY lastModified DESC` {
		t.Errorf("unexpected query %q", got)
	}

	got = BuildWikiQuery(`run\book`, WikiQueryOptions{SpaceKey: "ENG", ContentType: ContentPage})
	want := `space = "ENG" AND type = "page" AND (title ~ "runbook" OR text ~ "runbook") ORDER BY lastModified DESC`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if got := BuildWikiQuery("x", WikiQueryOptions{ContentType: ContentAll}); strings.Contains(got, "type =") {
		t.Errorf("ContentAll should not restrict type: %q", got)
	}

	if BuildWikiQuery("", WikiQueryOptions{SpaceKey: "ENG"}) != "" {
		t.Error("empty text should yield empty query")
	}
}
