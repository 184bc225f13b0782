package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructureHeadingsAndLists(t *testing.T) {
	text := "# Title\nIntro line one\nintro line two\n\n#### Steps\n1. First\n2) Second\n- loose\n* other\n\nClosing words."

	blocks := structure(text)

	require.Len(t, blocks, 6)
	assert.Equal(t, Block{Type: BlockHeading, Level: 1, Text: "Title", HTML: "<h1>Title</h1>"}, blocks[0])
	assert.Equal(t, BlockParagraph, blocks[1].Type)
	assert.Equal(t, "Intro line one\nintro line two", blocks[1].Text)
	assert.Equal(t, "<p>Intro line one<br>intro line two</p>", blocks[1].HTML)
	assert.Equal(t, 4, blocks[2].Level)
	assert.Equal(t, Block{Type: BlockList, Ordered: true, Items: []string{"First", "Second"}, HTML: "<ol><li>First</li><li>Second</li></ol>"}, blocks[3])
	assert.Equal(t, []string{"loose", "other"}, blocks[4].Items)
	assert.False(t, blocks[4].Ordered)
	assert.Equal(t, "Closing words.", blocks[5].Text)
}

func TestStructureHeadingBeforeParagraphWrapping(t *testing.T) {
	// Heading directly followed by text without a blank line
	blocks := structure("## Overview\nThe body.")

	require.Len(t, blocks, 2)
	assert.Equal(t, BlockHeading, blocks[0].Type)
	assert.Equal(t, "The body.", blocks[1].Text)
}

func TestStructureFiveHashesIsParagraph(t *testing.T) {
	blocks := structure("##### too deep")

	require.Len(t, blocks, 1)
	assert.Equal(t, BlockParagraph, blocks[0].Type)
}

func TestStructureInlineCode(t *testing.T) {
	blocks := structure("Run this:\n\n`go test ./...`\n\n```\nline 1\nline 2\n```")

	require.Len(t, blocks, 3)
	assert.Equal(t, Block{Type: BlockInlineCode, Text: "go test ./...", HTML: "<code>go test ./...</code>"}, blocks[1])
	assert.Equal(t, "line 1\nline 2", blocks[2].Text)
	assert.Equal(t, "<pre><code>line 1\nline 2</code></pre>", blocks[2].HTML)
}

func TestRenderInlineOrder(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a <b> & c", "a &lt;b&gt; &amp; c"},
		{"**bold** word", "<strong>bold</strong> word"},
		{"an *italic* word", "an <em>italic</em> word"},
		{"use `x < y`", "use <code>x &lt; y</code>"},
		{"**bold** and *it* and `code`", "<strong>bold</strong> and <em>it</em> and <code>code</code>"},
		{"2 * 3 * 4", "2 * 3 * 4"},
		{"__bold__ word", "<strong>bold</strong> word"},
		{"an _italic_ word", "an <em>italic</em> word"},
		{"__b__ and _i_", "<strong>b</strong> and <em>i</em>"},
		{"snake_case_name", "snake_case_name"},
		{"call my_func_here now", "call my_func_here now"},
		{"(_note_)", "(<em>note</em>)"},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, renderInline(tc.in))
		})
	}
}

func TestPlainFlattensDecoration(t *testing.T) {
	res := seeded(9).Enrich("# Tips\n\nStay **focused** today!\n\n- Learn *daily*\n- Ship `code`", EmojiMore)

	assert.Equal(t, "Tips\n\nStay focused today!\n\nLearn daily\nShip code", res.Plain())
}

func TestPlainStripsMarkers(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"**bold** and *it*", "bold and it"},
		{"__bold__ and _it_", "bold and it"},
		{"keep snake_case_name", "keep snake_case_name"},
		{"- __one__\n- _two_", "one\ntwo"},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Plain(structure(tc.in)))
		})
	}
}
