package chat

import (
	"regexp"
	"strings"
)

// BrandRule is one literal substitution applied to model output. Rules run
// in order, one pass each, so earlier rules can shadow later ones.
type BrandRule struct {
	Pattern     string
	Replacement string
}

// DefaultBrandRules rewrites mentions of the underlying model or provider
// family to the product name. Order matters: decorated variants first so
// the bare literal does not split them.
func DefaultBrandRules(productName string) []BrandRule {
	return []BrandRule{
		{Pattern: "**OpenAI**", Replacement: productName},
		{Pattern: "OpenAI", Replacement: productName},
		{Pattern: "ChatGPT", Replacement: productName},
		{Pattern: "OpenAI**", Replacement: productName},
		{Pattern: "openai", Replacement: productName},
	}
}

// ApplyBrandRules applies each rule once and trims surrounding whitespace.
func ApplyBrandRules(text string, rules []BrandRule) string {
	for _, rule := range rules {
		text = strings.ReplaceAll(text, rule.Pattern, rule.Replacement)
	}
	return strings.TrimSpace(text)
}

// emojiRule annotates the first whole-word occurrence of a keyword.
type emojiRule struct {
	keyword string
	emoji   string
	re      *regexp.Regexp
}

// emojiRules is the ordered keyword→emoji mapping. Each keyword is
// annotated at most once per reply, on its first case-insensitive
// whole-word match.
var emojiRules = buildEmojiRules([]struct{ keyword, emoji string }{
	{"love", "❤️"}, {"happy", "😊"}, {"sad", "😥"}, {"laugh", "😂"},
	{"smile", "😄"}, {"cry", "😢"}, {"miss you", "🥺"}, {"kiss", "😘"},
	{"hug", "🤗"}, {"think", "🤔"}, {"sweet", "🥰"}, {"blush", "😊"},
	{"heart", "❤️"}, {"star", "⭐"}, {"yay", "🎉"}, {"oh no", "😟"},
	{"sorry", "😔"}, {"please", "🙏"}, {"hi", "👋"}, {"hello", "👋"},
	{"bye", "👋"}, {"good night", "😴"}, {"sleep", "😴"}, {"dream", "💭"},
})

func buildEmojiRules(pairs []struct{ keyword, emoji string }) []emojiRule {
	rules := make([]emojiRule, 0, len(pairs))
	for _, p := range pairs {
		rules = append(rules, emojiRule{
			keyword: p.keyword,
			emoji:   p.emoji,
			re:      regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p.keyword) + `\b`),
		})
	}
	return rules
}

// AnnotateEmojis appends each rule's emoji after the first whole-word match
// of its keyword. Later occurrences are left untouched.
func AnnotateEmojis(text string) string {
	for _, rule := range emojiRules {
		loc := rule.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		text = text[:loc[1]] + " " + rule.emoji + text[loc[1]:]
	}
	return text
}
