// Package fallback answers chat messages without any remote call, used when
// the chat provider keeps failing.
package fallback

import (
	_ "embed"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed replies.yaml
var defaultReplies []byte

// Rule maps a set of keywords to candidate replies.
type Rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Replies  []string `yaml:"replies"`
}

// ReplySet is the document loaded from YAML.
type ReplySet struct {
	Rules   []Rule   `yaml:"rules"`
	Default []string `yaml:"default"`
}

var ErrNoDefaultReplies = errors.New("fallback: reply set has no default replies")

// Responder is deterministic: the same text always produces the same reply.
type Responder struct {
	set ReplySet
}

// New returns a responder using the built-in reply set.
func New() *Responder {
	r, err := Parse(defaultReplies)
	if err != nil {
		panic(fmt.Sprintf("fallback: built-in replies: %v", err))
	}
	return r
}

// Load reads a reply set from a YAML file.
func Load(path string) (*Responder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fallback: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated responder.
func Parse(data []byte) (*Responder, error) {
	var set ReplySet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("fallback: parse: %w", err)
	}
	if len(set.Default) == 0 {
		return nil, ErrNoDefaultReplies
	}
	for i, rule := range set.Rules {
		if len(rule.Replies) == 0 {
			return nil, fmt.Errorf("fallback: rule %d (%s) has no replies", i, rule.Name)
		}
		for j, kw := range rule.Keywords {
			set.Rules[i].Keywords[j] = normalize(kw)
		}
	}
	return &Responder{set: set}, nil
}

// Reply picks the first rule whose keyword appears as a whole word or phrase
// in text, then one of its replies by a stable hash of text.
func (r *Responder) Reply(text string) string {
	if rule, ok := r.match(text); ok {
		return pick(rule.Replies, text)
	}
	return pick(r.set.Default, text)
}

// Rule reports which rule name Reply would use, or "default".
func (r *Responder) Rule(text string) string {
	if rule, ok := r.match(text); ok {
		return rule.Name
	}
	return "default"
}

func (r *Responder) match(text string) (Rule, bool) {
	padded := " " + normalize(text) + " "
	for _, rule := range r.set.Rules {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(padded, " "+kw+" ") {
				return rule, true
			}
		}
	}
	return Rule{}, false
}

func pick(replies []string, text string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	return replies[h.Sum32()%uint32(len(replies))]
}

func normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
