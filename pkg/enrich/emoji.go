package enrich

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// EmojiLevel controls how much decoration is added to a response.
type EmojiLevel string

const (
	EmojiLess    EmojiLevel = "less"
	EmojiDefault EmojiLevel = "default"
	EmojiMore    EmojiLevel = "more"
)

// ParseEmojiLevel maps a user setting to a level; unknown values are default.
func ParseEmojiLevel(s string) EmojiLevel {
	switch EmojiLevel(strings.ToLower(strings.TrimSpace(s))) {
	case EmojiLess:
		return EmojiLess
	case EmojiMore:
		return EmojiMore
	default:
		return EmojiDefault
	}
}

const (
	maxEmojiDefault = 3
	maxEmojiMore    = 5

	moreMinSentenceLength = 15
	defaultChance         = 0.3

	thinkingEmoji = "🤔"
)

type emojiCategory struct {
	name     string
	keywords []string
	emojis   []string
}

// Priority order: the first category with a matching keyword wins.
var categories = []emojiCategory{
	{
		name:     "praise",
		keywords: []string{"great", "excellent", "awesome", "amazing", "perfect", "well done", "congrat*", "fantastic", "brilliant", "nice"},
		emojis:   []string{"🎉", "👏", "🌟", "🙌"},
	},
	{
		name:     "tech",
		keywords: []string{"code*", "coding", "program*", "software", "api", "database*", "server*", "function*", "algorithm*", "computer*", "debug*", "deploy*"},
		emojis:   []string{"💻", "⚙️", "🖥️", "🔧"},
	},
	{
		name:     "learning",
		keywords: []string{"learn*", "study", "studying", "understand*", "explain*", "knowledge", "lesson*", "course*", "research*", "concept*"},
		emojis:   []string{"📚", "🧠", "🎓", "📖"},
	},
	{
		name:     "creative",
		keywords: []string{"creat*", "design*", "idea*", "imagin*", "art", "draw*", "writ*", "story", "stories", "music*"},
		emojis:   []string{"🎨", "✨", "💡", "🖌️"},
	},
	{
		name:     "help",
		keywords: []string{"help*", "support*", "assist*", "guide*", "happy to", "glad to", "let me know", "feel free"},
		emojis:   []string{"🤝", "😊", "🙂", "💬"},
	},
	{
		name:     "time",
		keywords: []string{"time", "times", "schedul*", "deadline*", "today", "tomorrow", "minute*", "hour*", "soon", "later"},
		emojis:   []string{"⏰", "📅", "⌛", "🕒"},
	},
	{
		name:     "growth",
		keywords: []string{"grow*", "improv*", "progress*", "success*", "goal*", "achiev*", "better", "develop*", "practic*"},
		emojis:   []string{"🚀", "📈", "🌱", "💪"},
	},
}

var positiveEmojis = []string{"😊", "🎉", "✨", "🌟", "👍"}

// Words that make a sentence worth decorating at the default level.
var positiveWords = []string{
	"great", "good", "help*", "happy", "glad", "excellent", "awesome", "wonderful",
	"perfect", "love*", "enjoy*", "thank*", "welcome", "success*", "hope*",
	"easy", "fun", "best", "nice",
}

var skipMarkers = []string{"error:", "warning:", "failed"}

// shouldSkipEmoji reports whether text must be left undecorated.
func shouldSkipEmoji(text string, level EmojiLevel) bool {
	if level == EmojiLess {
		return true
	}
	if strings.Contains(text, "```") {
		return true
	}
	lower := strings.ToLower(text)
	for _, m := range skipMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func emojiCap(level EmojiLevel) int {
	if level == EmojiMore {
		return maxEmojiMore
	}
	return maxEmojiDefault
}

// sentence is a slice of the source text. End is the byte offset just past
// the sentence's closing delimiter run, where an emoji would be inserted.
type sentence struct {
	Text string
	End  int
}

// splitSentences cuts text after each run of '.', '!' or '?' that is followed
// by whitespace or the end of text, so "3.14" and "example.com" stay intact.
// The delimiter stays attached to its sentence.
func splitSentences(text string) []sentence {
	var out []sentence
	start := 0
	i := 0
	for i < len(text) {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			i++
			continue
		}
		j := i
		for j < len(text) && (text[j] == '.' || text[j] == '!' || text[j] == '?') {
			j++
		}
		if j == len(text) || isSpaceByte(text[j]) {
			out = append(out, sentence{Text: text[start:j], End: j})
			start = j
		}
		i = j
	}
	if strings.TrimSpace(text[start:]) != "" {
		out = append(out, sentence{Text: text[start:], End: len(text)})
	}
	return out
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// containsAnyWord reports whether lower holds one of words as a whole word or
// phrase. A trailing '*' lets the word take any suffix, as in "learn*".
func containsAnyWord(lower string, words []string) bool {
	for _, w := range words {
		stem := strings.HasSuffix(w, "*")
		w = strings.TrimSuffix(w, "*")
		for from := 0; from < len(lower); {
			i := strings.Index(lower[from:], w)
			if i < 0 {
				break
			}
			start, end := from+i, from+i+len(w)
			if wordBoundaryBefore(lower, start) && (stem || wordBoundaryAfter(lower, end)) {
				return true
			}
			from = start + 1
		}
	}
	return false
}

func wordBoundaryBefore(s string, i int) bool {
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return i == 0 || !isWordRune(r)
}

func wordBoundaryAfter(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return i == len(s) || !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func endsWithEmoji(s string) bool {
	s = strings.TrimSpace(s)
	r, _ := utf8.DecodeLastRuneInString(s)
	return r != utf8.RuneError && (unicode.Is(unicode.So, r) || r == '\uFE0F')
}
