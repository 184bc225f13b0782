package enrich

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed uint64) *Processor {
	return NewProcessor(WithRand(rand.New(rand.NewPCG(seed, seed+1))))
}

func TestParseEmojiLevel(t *testing.T) {
	assert.Equal(t, EmojiLess, ParseEmojiLevel("LESS"))
	assert.Equal(t, EmojiMore, ParseEmojiLevel(" more "))
	assert.Equal(t, EmojiDefault, ParseEmojiLevel("default"))
	assert.Equal(t, EmojiDefault, ParseEmojiLevel("lots"))
	assert.Equal(t, EmojiDefault, ParseEmojiLevel(""))
}

func TestEnrichSkipsDecoration(t *testing.T) {
	p := seeded(1)

	tests := []struct {
		name  string
		raw   string
		level EmojiLevel
	}{
		{"less level", "Great job! Is this working?", EmojiLess},
		{"code fence", "Here you go!\n```go\nfmt.Println(\"hi\")\n```", EmojiMore},
		{"error text", "Error: the upload failed! Try again?", EmojiDefault},
		{"warning text", "WARNING: disk almost full!", EmojiMore},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := p.Enrich(tc.raw, tc.level)
			assert.Equal(t, tc.raw, res.Text)
			assert.Zero(t, res.EmojiCount)
		})
	}
}

func TestEnrichQuestionWithoutCategoryGetsThinkingEmoji(t *testing.T) {
	res := seeded(2).Enrich("Is this working?", EmojiDefault)

	assert.Equal(t, "Is this working? 🤔", res.Text)
	assert.Equal(t, 1, res.EmojiCount)
}

func TestEnrichCategoryPriority(t *testing.T) {
	p := seeded(3)

	res := p.Enrich("Great job on the code!", EmojiDefault)
	// praise outranks tech
	require.Equal(t, 1, res.EmojiCount)
	assert.Contains(t, categories[0].emojis, strings.TrimPrefix(res.Text, "Great job on the code! "))

	res = p.Enrich("Did the server restart?", EmojiDefault)
	require.Equal(t, 1, res.EmojiCount)
	assert.Contains(t, categories[1].emojis, strings.TrimPrefix(res.Text, "Did the server restart? "))
}

func TestEnrichExclamationWithoutCategoryGetsPositiveEmoji(t *testing.T) {
	res := seeded(4).Enrich("Wow!", EmojiDefault)

	require.Equal(t, 1, res.EmojiCount)
	assert.Contains(t, positiveEmojis, strings.TrimPrefix(res.Text, "Wow! "))
}

func TestEnrichCaps(t *testing.T) {
	raw := "One! Two! Three! Four! Five! Six! Seven!"

	assert.Equal(t, maxEmojiDefault, seeded(5).Enrich(raw, EmojiDefault).EmojiCount)
	assert.Equal(t, maxEmojiMore, seeded(5).Enrich(raw, EmojiMore).EmojiCount)
}

func TestEnrichMoreDecoratesLongStatements(t *testing.T) {
	res := seeded(6).Enrich("Practice a little every single day.", EmojiMore)

	require.Equal(t, 1, res.EmojiCount)
	assert.True(t, strings.HasPrefix(res.Text, "Practice a little every single day. "))
}

func TestEnrichDoesNotSplitDecimalsOrDomains(t *testing.T) {
	sentences := splitSentences("Pi is 3.14 roughly. Visit example.com now! Ok")

	require.Len(t, sentences, 3)
	assert.Equal(t, "Pi is 3.14 roughly.", sentences[0].Text)
	assert.Equal(t, " Visit example.com now!", sentences[1].Text)
	assert.Equal(t, " Ok", sentences[2].Text)
}

func TestEnrichKeepsExistingEmoji(t *testing.T) {
	res := seeded(7).Enrich("Nice work! 🎉", EmojiMore)

	assert.Equal(t, "Nice work! 🎉", res.Text)
	assert.Zero(t, res.EmojiCount)
}

func TestEnrichStripIsLossless(t *testing.T) {
	inputs := []string{
		"Great question! Let me explain how the database index works. Does that help?",
		"# Plan\n\n1. Learn the basics.\n2. Practice every day!\n\nGood luck with your goal!",
		"Thanks for asking. I hope this is helpful. See you tomorrow!",
		"Short.",
		"Trailing spaces are fine!   \n\n",
		"Mixed **bold** and *italic* text. Ready to deploy?",
	}

	for seed := uint64(0); seed < 20; seed++ {
		p := seeded(seed)
		for _, level := range []EmojiLevel{EmojiLess, EmojiDefault, EmojiMore} {
			for _, raw := range inputs {
				res := p.Enrich(raw, level)
				assert.Equal(t, raw, res.Undecorated(), "seed %d level %s", seed, level)
				assert.Equal(t, raw, res.RawText)
				assert.LessOrEqual(t, res.EmojiCount, emojiCap(level))
			}
		}
	}
}

func TestEnrichKeepsAuthoredEmojiWhenUndecorated(t *testing.T) {
	raw := "Party time 🎉 is here. Great job everyone!"

	for seed := uint64(0); seed < 10; seed++ {
		res := seeded(seed).Enrich(raw, EmojiMore)

		require.NotZero(t, res.EmojiCount)
		assert.Equal(t, raw, res.Undecorated())
		assert.Contains(t, res.Plain(), "Party time 🎉 is here.")
	}
}

func TestEnrichRecordsInsertions(t *testing.T) {
	res := seeded(10).Enrich("Is it done? Yes!", EmojiDefault)

	require.Len(t, res.Insertions, 2)
	assert.Equal(t, res.EmojiCount, len(res.Insertions))
	for _, ins := range res.Insertions {
		assert.Equal(t, " "+ins.Emoji, res.Text[ins.Offset:ins.Offset+1+len(ins.Emoji)])
	}
	assert.Less(t, res.Insertions[0].Offset, res.Insertions[1].Offset)
}

func TestContainsAnyWord(t *testing.T) {
	tests := []struct {
		text  string
		words []string
		want  bool
	}{
		{"time to start", []string{"art"}, false},
		{"a rapid fix", []string{"api"}, false},
		{"call the api now", []string{"api"}, true},
		{"modern art.", []string{"art"}, true},
		{"keep learning", []string{"learn*"}, true},
		{"relearn it", []string{"learn*"}, false},
		{"well done, team", []string{"well done"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.want, containsAnyWord(tc.text, tc.words))
		})
	}
}

func TestEnrichCategoryIgnoresWordFragments(t *testing.T) {
	res := seeded(11).Enrich("Let us restart?", EmojiDefault)

	assert.Equal(t, "Let us restart? 🤔", res.Text)
}

func TestEnrichFillsBlocksAndHTML(t *testing.T) {
	res := seeded(8).Enrich("## Tips\n\n- Use **bold** text\n- Escape <script>", EmojiLess)

	require.Len(t, res.Blocks, 2)
	assert.Equal(t, BlockHeading, res.Blocks[0].Type)
	assert.Equal(t, BlockList, res.Blocks[1].Type)
	assert.Contains(t, res.HTML, "<h2>Tips</h2>")
	assert.Contains(t, res.HTML, "<strong>bold</strong>")
	assert.NotContains(t, res.HTML, "<script>")
	assert.Equal(t, EmojiLess, res.EmojiLevel)
}
