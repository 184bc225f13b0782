package continuity

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty", "", TitleQuickChat},
		{"whitespace", "   \n\t", TitleQuickChat},
		{"single char", "?", TitleQuickChat},
		{"punctuation only", "?!...", TitleQuickChat},
		{"repeated char", "aaaaaaaa", TitleKeyboardTest},
		{"repeated char short run", "zzzz", TitleKeyboardTest},
		{"home row mash", "asdfghjkl", TitleKeyboardTest},
		{"top row mash", "qwertyuiop", TitleKeyboardTest},
		{"reversed row mash", "poiuytrewq", TitleKeyboardTest},
		{"home then top row", "asdfqwer", TitleKeyboardTest},
		{"three rows", "qweasdzxc", TitleKeyboardTest},
		{"top row word", "typewriter", "Typewriter"},
		{"another top row word", "proprietor", "Proprietor"},
		{"short walk is a word", "qwerty", "Qwerty"},
		{"stop words only", "the a an of", TitleQuickChat},
		{"short tokens only", "hi yo ok", TitleQuickChat},
		{
			"question",
			"How do I configure nginx as a reverse proxy?",
			"Configure Nginx Reverse Proxy",
		},
		{
			"punctuation stripped",
			"What's the best way to learn Go, quickly?!",
			"Whats Best Learn Quickly",
		},
		{
			"keeps at most eight tokens",
			"alpha bravo charlie delta echo foxtrot golf hotel india juliet",
			"Alpha Bravo Charlie Delta Echo Foxtrot Golf Hotel",
		},
		{
			"hyphen splits words",
			"long-term planning for retirement",
			"Long Term Planning Retirement",
		},
		{
			"spaced mash is not a keyboard test",
			"asdf ghjk",
			"Asdf Ghjk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.text))
		})
	}
}

func TestDeriveTitleTruncates(t *testing.T) {
	text := strings.Repeat("extraordinarily ", 8)
	got := DeriveTitle(text)

	assert.LessOrEqual(t, utf8.RuneCountInString(got), maxTitleLength)
	assert.True(t, strings.HasPrefix(got, "Extraordinarily Extraordinarily"))
	assert.Equal(t, strings.TrimSpace(got), got)
}

func TestDeriveTitleIsDeterministic(t *testing.T) {
	text := "Plan a three day hiking trip through the Dolomites"
	first := DeriveTitle(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, DeriveTitle(text))
	}
	assert.Equal(t, "Plan Three Day Hiking Trip Through Dolomites", first)
}
