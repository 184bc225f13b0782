package intent

import (
	"regexp"
	"strings"
)

// Group order - ORDER MATTERS. Podcast and document phrasing is checked before
// the generic image templates so that "create a podcast about robots" never
// lands in the image group just because it reads "create ... about".
const (
	GroupPodcast = "podcast"
	GroupPDF     = "pdf"
	GroupDOCX    = "docx"
	GroupImage   = "image"
)

// verbs and connectors shared by the templates below
const (
	lead      = `^\s*(?:hey\s*,?\s+)?(?:please\s+)?(?:can\s+you\s+|could\s+you\s+|would\s+you\s+)?(?:please\s+)?`
	create    = `(?:create|make|generate|produce|build|write|prepare|give\s+me|i\s+want|i\s+need)`
	me        = `(?:\s+me)?`
	article   = `(?:\s+(?:a|an|the|some))?`
	connector = `\s+(?:about|on|for|of|regarding|covering|discussing)\s+`
	capture   = `(.+?)`
	tail      = `[\s.!?]*$`
)

type group struct {
	name      string
	templates []*regexp.Regexp
	build     func(capture string) Request
}

// Classifier maps raw user text to a Request by walking an ordered table of
// pattern groups. The first group whose template captures a non-empty
// remainder wins; Chat is the default.
type Classifier struct {
	groups []group
}

// NewClassifier builds a classifier with the default pattern table.
func NewClassifier() *Classifier {
	return &Classifier{groups: defaultGroups()}
}

var defaultClassifier = NewClassifier()

// Classify classifies text with the default pattern table.
func Classify(text string) Request {
	return defaultClassifier.Classify(text)
}

// Classify returns exactly one Request for text. It never fails: text that
// matches no template, or whose captured remainder is empty, is Chat.
func (c *Classifier) Classify(text string) Request {
	trimmed := strings.TrimSpace(text)

	for _, g := range c.groups {
		for _, tpl := range g.templates {
			m := tpl.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			captured := cleanCapture(m[len(m)-1])
			if captured == "" {
				// Discard and keep walking the cascade
				continue
			}
			return g.build(captured)
		}
	}

	return Chat{Text: trimmed}
}

// Groups returns the group names in evaluation order.
func (c *Classifier) Groups() []string {
	names := make([]string, len(c.groups))
	for i, g := range c.groups {
		names[i] = g.name
	}
	return names
}

func cleanCapture(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, " .!?")
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

func defaultGroups() []group {
	podcast := `(?:\s+(?:short|quick|new|little))?\s+podcast(?:\s+(?:episode|show|segment))?`
	pdf := `(?:\s+(?:short|quick|new))?\s+pdf(?:\s+(?:document|file|report|doc))?`
	docx := `(?:\s+(?:short|quick|new))?\s+(?:docx|word\s+document|word\s+doc|word\s+file)(?:\s+(?:document|file|report))?`
	picture := `(?:picture|image|photo|drawing|painting|illustration|artwork|logo|wallpaper|sketch)`

	return []group{
		{
			name: GroupPodcast,
			templates: compile(
				lead+create+me+article+podcast+connector+capture+tail,
				lead+`(?:record|narrate)`+me+article+podcast+connector+capture+tail,
				`^\s*podcast\s*(?::|-|about|on)\s*`+capture+tail,
				`\b(?:create|make|generate|produce|record)\b.*?\bpodcast\b.*?\b(?:about|on|regarding)\s+`+capture+tail,
			),
			build: func(s string) Request { return PodcastGeneration{Topic: s} },
		},
		{
			name: GroupPDF,
			templates: compile(
				lead+`(?:`+create+`|export|convert)`+me+article+pdf+connector+capture+tail,
				`^\s*pdf\s*(?::|-|about|on|of|for)\s*`+capture+tail,
				`\b(?:create|make|generate|produce|write|export)\b.*?\bpdf\b.*?\b(?:about|on|regarding)\s+`+capture+tail,
			),
			build: func(s string) Request { return DocumentGeneration{Format: FormatPDF, Topic: s} },
		},
		{
			name: GroupDOCX,
			templates: compile(
				lead+`(?:`+create+`|export|convert)`+me+article+docx+connector+capture+tail,
				`^\s*(?:docx|word\s+doc(?:ument)?)\s*(?::|-|about|on|of|for)\s*`+capture+tail,
				`\b(?:create|make|generate|produce|write|export)\b.*?\b(?:docx|word\s+document)\b.*?\b(?:about|on|regarding)\s+`+capture+tail,
			),
			build: func(s string) Request { return DocumentGeneration{Format: FormatDOCX, Topic: s} },
		},
		{
			name: GroupImage,
			templates: compile(
				lead+`(?:draw|paint|sketch|illustrate)`+me+`\s+(?:a|an)\s+`+picture+`\s+(?:of|about|showing|depicting)\s+`+capture+tail,
				lead+`(?:draw|paint|sketch|illustrate)`+me+`\s+`+capture+tail,
				lead+`(?:`+create+`|render|design|show\s+me|imagine)`+me+article+`\s+`+picture+`\s+(?:of|about|for|showing|depicting|with)\s+`+capture+tail,
				`^\s*(?:image|picture)\s*(?::|-|of)\s*`+capture+tail,
			),
			build: func(s string) Request { return ImageGeneration{Prompt: s} },
		},
	}
}
