package enrich

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

type BlockType string

const (
	BlockHeading    BlockType = "heading"
	BlockParagraph  BlockType = "paragraph"
	BlockList       BlockType = "list"
	BlockInlineCode BlockType = "inline_code"
)

// Block is one structural unit of a reply. Text and Items keep the source
// wording including inline markers; HTML is the rendered form.
type Block struct {
	Type    BlockType `json:"type"`
	Level   int       `json:"level,omitempty"`
	Ordered bool      `json:"ordered,omitempty"`
	Text    string    `json:"text,omitempty"`
	Items   []string  `json:"items,omitempty"`
	HTML    string    `json:"html"`
}

var (
	headingLine   = regexp.MustCompile(`^(#{1,4})\s+(.+)$`)
	orderedLine   = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)
	unorderedLine = regexp.MustCompile(`^\s*[-*+]\s+(.+)$`)
	codeLine      = regexp.MustCompile("^`([^`]+)`$")

	boldSpan        = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldUnderscore  = regexp.MustCompile(`__([^_\s](?:[^_]*?[^_\s])?)__`)
	italicSpan      = regexp.MustCompile(`\*([^*\s][^*]*?)\*`)
	italicUnderscore = regexp.MustCompile(`_([^_\s](?:[^_]*?[^_\s])?)_`)
	codeSpan        = regexp.MustCompile("`([^`]+)`")
)

const fence = "```"

// structure detects block boundaries on raw lines, before any paragraph
// wrapping, so headings and list items never end up inside a paragraph.
func structure(text string) []Block {
	var (
		blocks    []Block
		paragraph []string
		list      *Block
		code      []string
		inFence   bool
	)

	flushParagraph := func() {
		if len(paragraph) == 0 {
			return
		}
		joined := strings.Join(paragraph, "\n")
		blocks = append(blocks, Block{Type: BlockParagraph, Text: joined})
		paragraph = nil
	}
	flushList := func() {
		if list == nil {
			return
		}
		blocks = append(blocks, *list)
		list = nil
	}
	addItem := func(ordered bool, item string) {
		flushParagraph()
		if list != nil && list.Ordered != ordered {
			flushList()
		}
		if list == nil {
			list = &Block{Type: BlockList, Ordered: ordered}
		}
		list.Items = append(list.Items, strings.TrimSpace(item))
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, fence) {
			if inFence {
				blocks = append(blocks, Block{Type: BlockInlineCode, Text: strings.Join(code, "\n")})
				code = nil
			} else {
				flushParagraph()
				flushList()
			}
			inFence = !inFence
			continue
		}
		if inFence {
			code = append(code, line)
			continue
		}

		switch {
		case trimmed == "":
			flushParagraph()
			flushList()
		case headingLine.MatchString(trimmed):
			flushParagraph()
			flushList()
			m := headingLine.FindStringSubmatch(trimmed)
			blocks = append(blocks, Block{Type: BlockHeading, Level: len(m[1]), Text: m[2]})
		case orderedLine.MatchString(line):
			addItem(true, orderedLine.FindStringSubmatch(line)[1])
		case unorderedLine.MatchString(line):
			addItem(false, unorderedLine.FindStringSubmatch(line)[1])
		case codeLine.MatchString(trimmed):
			flushParagraph()
			flushList()
			blocks = append(blocks, Block{Type: BlockInlineCode, Text: codeLine.FindStringSubmatch(trimmed)[1]})
		default:
			flushList()
			paragraph = append(paragraph, trimmed)
		}
	}

	// An unterminated fence still yields its content
	if inFence && len(code) > 0 {
		blocks = append(blocks, Block{Type: BlockInlineCode, Text: strings.Join(code, "\n")})
	}
	flushParagraph()
	flushList()

	for i := range blocks {
		blocks[i].HTML = renderBlock(blocks[i])
	}
	return blocks
}

// renderInline escapes HTML first, then applies bold, italic and inline code
// in that order.
func renderInline(s string) string {
	out := html.EscapeString(s)
	out = boldSpan.ReplaceAllString(out, "<strong>$1</strong>")
	out = replaceUnderscored(out, boldUnderscore, "<strong>", "</strong>")
	out = italicSpan.ReplaceAllString(out, "<em>$1</em>")
	out = replaceUnderscored(out, italicUnderscore, "<em>", "</em>")
	out = codeSpan.ReplaceAllString(out, "<code>$1</code>")
	return out
}

// replaceUnderscored wraps the first group of every match of re that stands
// as a whole word, so snake_case_name is left alone.
func replaceUnderscored(s string, re *regexp.Regexp, open, close string) string {
	var sb strings.Builder
	last, pos := 0, 0
	for pos < len(s) {
		loc := re.FindStringSubmatchIndex(s[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if !wordEdge(s, start-1) || !wordEdge(s, end) {
			pos = start + 1
			continue
		}
		sb.WriteString(s[last:start])
		sb.WriteString(open)
		sb.WriteString(s[pos+loc[2] : pos+loc[3]])
		sb.WriteString(close)
		last, pos = end, end
	}
	sb.WriteString(s[last:])
	return sb.String()
}

// wordEdge reports whether the byte at i is outside s or not part of a word.
func wordEdge(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= utf8.RuneSelf)
}

func renderBlock(b Block) string {
	var sb strings.Builder
	switch b.Type {
	case BlockHeading:
		tag := "h" + string(rune('0'+b.Level))
		sb.WriteString("<" + tag + ">" + renderInline(b.Text) + "</" + tag + ">")
	case BlockList:
		tag := "ul"
		if b.Ordered {
			tag = "ol"
		}
		sb.WriteString("<" + tag + ">")
		for _, item := range b.Items {
			sb.WriteString("<li>" + renderInline(item) + "</li>")
		}
		sb.WriteString("</" + tag + ">")
	case BlockInlineCode:
		if strings.Contains(b.Text, "\n") {
			sb.WriteString("<pre><code>" + html.EscapeString(b.Text) + "</code></pre>")
		} else {
			sb.WriteString("<code>" + html.EscapeString(b.Text) + "</code>")
		}
	default:
		lines := strings.Split(b.Text, "\n")
		for i, l := range lines {
			lines[i] = renderInline(l)
		}
		sb.WriteString("<p>" + strings.Join(lines, "<br>") + "</p>")
	}
	return sb.String()
}

func renderHTML(blocks []Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		sb.WriteString(b.HTML)
	}
	return sb.String()
}

// Plain flattens blocks back to text without inline markers. Blocks are
// separated by a blank line and list items by a newline. Use
// EnrichedResponse.Plain to also drop the inserted emoji.
func Plain(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case BlockList:
			items := make([]string, len(b.Items))
			for i, item := range b.Items {
				items[i] = stripInline(item)
			}
			parts = append(parts, strings.Join(items, "\n"))
		case BlockInlineCode:
			parts = append(parts, b.Text)
		default:
			parts = append(parts, stripInline(b.Text))
		}
	}
	return strings.Join(parts, "\n\n")
}

func stripInline(s string) string {
	s = boldSpan.ReplaceAllString(s, "$1")
	s = replaceUnderscored(s, boldUnderscore, "", "")
	s = italicSpan.ReplaceAllString(s, "$1")
	s = replaceUnderscored(s, italicUnderscore, "", "")
	return codeSpan.ReplaceAllString(s, "$1")
}
