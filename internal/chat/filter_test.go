package chat

import (
	"strings"
	"testing"
)

func TestApplyBrandRules_RewritesAllVariants(t *testing.T) {
	rules := DefaultBrandRules("Friendix.ai")

	cases := []struct {
		in   string
		want string
	}{
		{"I was built by OpenAI.", "I was built by Friendix.ai."},
		{"I am powered by openai technology.", "I am powered by Friendix.ai technology."},
		{"As ChatGPT I can help.", "As Friendix.ai I can help."},
		{"Made by **OpenAI** labs.", "Made by Friendix.ai labs."},
		{"  padded reply  ", "padded reply"},
	}
	for _, tc := range cases {
		got := ApplyBrandRules(tc.in, rules)
		if got != tc.want {
			t.Fatalf("ApplyBrandRules(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestApplyBrandRules_NoProviderMentionSurvives(t *testing.T) {
	rules := DefaultBrandRules("Friendix.ai")
	out := ApplyBrandRules("OpenAI and openai and ChatGPT walk into a bar", rules)
	for _, banned := range []string{"OpenAI", "openai", "ChatGPT"} {
		if strings.Contains(out, banned) {
			t.Fatalf("expected %q to be rewritten, got %q", banned, out)
		}
	}
}

func TestAnnotateEmojis_FirstOccurrenceOnly(t *testing.T) {
	out := AnnotateEmojis("I love you and I love this song")
	if got, want := strings.Count(out, "❤️"), 1; got != want {
		t.Fatalf("expected %d heart, got %d in %q", want, got, out)
	}
	if !strings.HasPrefix(out, "I love ❤️ you") {
		t.Fatalf("expected annotation after first occurrence, got %q", out)
	}
}

func TestAnnotateEmojis_CaseInsensitiveWholeWord(t *testing.T) {
	out := AnnotateEmojis("HAPPY days")
	if !strings.Contains(out, "HAPPY 😊") {
		t.Fatalf("expected case-insensitive match, got %q", out)
	}

	out = AnnotateEmojis("unhappy days")
	if strings.Contains(out, "😊") {
		t.Fatalf("expected no annotation inside a larger word, got %q", out)
	}
}

func TestAnnotateEmojis_MultiWordKeyword(t *testing.T) {
	out := AnnotateEmojis("I miss you so much")
	if !strings.Contains(out, "miss you 🥺") {
		t.Fatalf("expected multi-word keyword annotation, got %q", out)
	}
}
