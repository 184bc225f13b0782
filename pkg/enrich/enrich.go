package enrich

import (
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// EnrichedResponse is the display form of one assistant reply.
type EnrichedResponse struct {
	RawText    string     `json:"raw_text"`
	Text       string     `json:"text"`
	Blocks     []Block    `json:"blocks"`
	HTML       string     `json:"html"`
	EmojiLevel EmojiLevel `json:"emoji_level"`
	EmojiCount int        `json:"emoji_count"`
	// Insertions locate every emoji added to Text, in ascending order.
	Insertions []Insertion `json:"insertions,omitempty"`
}

// Insertion is one emoji added to Text. Offset is the byte position of the
// space written before it.
type Insertion struct {
	Offset int    `json:"offset"`
	Emoji  string `json:"emoji"`
}

// Undecorated removes exactly the inserted emoji, so emoji the raw text
// already carried survive: r.Undecorated() == r.RawText.
func (r EnrichedResponse) Undecorated() string {
	out := r.Text
	for i := len(r.Insertions) - 1; i >= 0; i-- {
		ins := r.Insertions[i]
		end := ins.Offset + 1 + len(ins.Emoji)
		if ins.Offset < 0 || end > len(out) || out[ins.Offset:end] != " "+ins.Emoji {
			continue
		}
		out = out[:ins.Offset] + out[end:]
	}
	return out
}

// Plain flattens the undecorated reply to text without inline markers.
func (r EnrichedResponse) Plain() string {
	return Plain(structure(r.RawText))
}

// Processor decorates raw assistant text with emoji and converts its light
// markup into structured blocks. It is safe for concurrent use.
type Processor struct {
	mu     sync.Mutex
	rng    *rand.Rand
	policy *bluemonday.Policy
}

type Option func(*Processor)

// WithRand fixes the random source, mostly for tests.
func WithRand(r *rand.Rand) Option {
	return func(p *Processor) {
		if r != nil {
			p.rng = r
		}
	}
}

func NewProcessor(opts ...Option) *Processor {
	now := uint64(time.Now().UnixNano())
	p := &Processor{
		rng:    rand.New(rand.NewPCG(now, now>>1)),
		policy: bluemonday.UGCPolicy(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enrich never changes the wording of raw: result.Undecorated() == raw.
func (p *Processor) Enrich(raw string, level EmojiLevel) EnrichedResponse {
	level = ParseEmojiLevel(string(level))

	decorated := raw
	var inserted []Insertion
	if !shouldSkipEmoji(raw, level) {
		decorated, inserted = p.decorate(raw, level)
	}

	blocks := structure(decorated)
	return EnrichedResponse{
		RawText:    raw,
		Text:       decorated,
		Blocks:     blocks,
		HTML:       p.policy.Sanitize(renderHTML(blocks)),
		EmojiLevel: level,
		EmojiCount: len(inserted),
		Insertions: inserted,
	}
}

type emojiPick struct {
	at    int
	emoji string
}

func (p *Processor) decorate(text string, level EmojiLevel) (string, []Insertion) {
	p.mu.Lock()
	defer p.mu.Unlock()

	limit := emojiCap(level)
	var picks []emojiPick

	for _, s := range splitSentences(text) {
		if len(picks) == limit {
			break
		}

		start := s.End - len(s.Text)
		end := s.End
		for end > start && isSpaceByte(text[end-1]) {
			end--
		}
		trimmed := strings.TrimSpace(text[start:end])
		if trimmed == "" || endsWithEmoji(trimmed) || followedByEmoji(text, end) {
			continue
		}

		question := strings.HasSuffix(trimmed, "?")
		exclaim := strings.HasSuffix(trimmed, "!")
		lower := strings.ToLower(trimmed)

		eligible := question || exclaim
		if !eligible {
			switch level {
			case EmojiMore:
				eligible = len(trimmed) > moreMinSentenceLength
			default:
				eligible = containsAnyWord(lower, positiveWords) || p.rng.Float64() < defaultChance
			}
		}
		if !eligible {
			continue
		}

		if emoji := p.pickEmoji(lower, question, exclaim); emoji != "" {
			picks = append(picks, emojiPick{at: end, emoji: emoji})
		}
	}

	if len(picks) == 0 {
		return text, nil
	}

	sort.Slice(picks, func(i, j int) bool { return picks[i].at < picks[j].at })
	var sb strings.Builder
	inserted := make([]Insertion, 0, len(picks))
	last := 0
	for _, pick := range picks {
		sb.WriteString(text[last:pick.at])
		inserted = append(inserted, Insertion{Offset: sb.Len(), Emoji: pick.emoji})
		sb.WriteString(" " + pick.emoji)
		last = pick.at
	}
	sb.WriteString(text[last:])
	return sb.String(), inserted
}

func (p *Processor) pickEmoji(lower string, question, exclaim bool) string {
	for _, c := range categories {
		if containsAnyWord(lower, c.keywords) {
			return c.emojis[p.rng.IntN(len(c.emojis))]
		}
	}
	switch {
	case question:
		return thinkingEmoji
	case exclaim:
		return positiveEmojis[p.rng.IntN(len(positiveEmojis))]
	default:
		return ""
	}
}

func followedByEmoji(text string, at int) bool {
	rest := strings.TrimLeft(text[at:], " \t")
	if rest == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return unicode.Is(unicode.So, r)
}
