package continuity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	TitleQuickChat    = "Quick Chat"
	TitleKeyboardTest = "Keyboard Test"

	maxTitleTokens = 8
	maxTitleLength = 60
)

// Letter rows of a QWERTY keyboard, used to spot mashed input such as
// "asdfghjkl" or "qweasdzxc".
var keyboardRows = []string{
	"qwertyuiop",
	"asdfghjkl",
	"zxcvbnm",
}

const (
	minMashLength = 8
	minKeyRun     = 3
)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a an and are as at be been but by can could did do does for from had has have
		he her hers him his how i if in into is it its just me my of on or our ours
		she should so some than that the their them then there these they this those
		to too very was we were what when where which who why will with would you your
		yours please hey hello hi thanks thank okay ok tell give show want need know
		about also any all get got let lets make much many more most not now only
		really same such use using way well yes`) {
		stopWords[w] = struct{}{}
	}
}

// DeriveTitle turns the first message of a conversation into a short title.
// It is pure: the same text always yields the same title.
func DeriveTitle(text string) string {
	trimmed := strings.TrimSpace(text)
	if isNearEmpty(trimmed) {
		return TitleQuickChat
	}
	if isKeyboardMash(trimmed) {
		return TitleKeyboardTest
	}

	tokens := strings.Fields(strings.ToLower(stripPunctuation(trimmed)))
	kept := make([]string, 0, maxTitleTokens)
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		kept = append(kept, titleCase(tok))
		if len(kept) == maxTitleTokens {
			break
		}
	}

	if len(kept) == 0 {
		return TitleQuickChat
	}

	return truncateRunes(strings.Join(kept, " "), maxTitleLength)
}

func isNearEmpty(s string) bool {
	if utf8.RuneCountInString(s) < 2 {
		return true
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// isKeyboardMash matches one character repeated at least four times, or at
// least eight characters with no spaces that split into runs of neighbouring
// keys. Each run walks one row in one direction and is at least three keys
// long, so "asdfqwer" is a mash and "typewriter" is not.
func isKeyboardMash(s string) bool {
	lower := strings.ToLower(s)
	if strings.ContainsAny(lower, " \t\n") {
		return false
	}
	runes := []rune(lower)

	if len(runes) >= 4 {
		same := true
		for _, r := range runes[1:] {
			if r != runes[0] {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}

	if len(runes) < minMashLength {
		return false
	}
	for i := 0; i < len(runes); {
		j, dir := i+1, 0
		for j < len(runes) {
			step := keyStep(runes[j-1], runes[j])
			if step == 0 || (dir != 0 && step != dir) {
				break
			}
			dir = step
			j++
		}
		if j-i < minKeyRun {
			return false
		}
		i = j
	}
	return true
}

// keyStep returns 1 when b is the key right of a on the same row, -1 when it
// is the key to the left, and 0 otherwise.
func keyStep(a, b rune) int {
	for _, row := range keyboardRows {
		ia, ib := strings.IndexRune(row, a), strings.IndexRune(row, b)
		if ia < 0 || ib < 0 {
			continue
		}
		switch ib - ia {
		case 1:
			return 1
		case -1:
			return -1
		}
		return 0
	}
	return 0
}

func stripPunctuation(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		case r == '-' || r == '/':
			// keep "long-term" and "and/or" as separate words
			sb.WriteRune(' ')
		}
	}
	return sb.String()
}

func titleCase(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(r)) + word[size:]
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}
