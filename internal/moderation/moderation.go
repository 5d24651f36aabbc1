// Package moderation blocks conversations touching configured topics or words
// before any provider call is made.
package moderation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lumichat/lumichat-relay/internal/keyword"
)

// Lists holds the configured blocklists.
type Lists struct {
	Topics []string `yaml:"blocked_topics"`
	Words  []string `yaml:"blocked_words"`
}

// LoadLists reads blocklists from a YAML file. A missing path yields empty
// lists rather than an error so the relay can run unrestricted.
func LoadLists(path string) (Lists, error) {
	if path == "" {
		return Lists{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Lists{}, nil
	}
	if err != nil {
		return Lists{}, fmt.Errorf("moderation: read blocklist %s: %w", path, err)
	}
	var lists Lists
	if err := yaml.Unmarshal(data, &lists); err != nil {
		return Lists{}, fmt.Errorf("moderation: parse blocklist %s: %w", path, err)
	}
	return lists, nil
}

// Filter checks user text against the blocklists. Pure and synchronous.
type Filter struct {
	topics keyword.Matcher
	words  keyword.Matcher
}

// NewFilter builds a Filter from the supplied lists.
func NewFilter(lists Lists) *Filter {
	return &Filter{
		topics: keyword.New(lists.Topics...),
		words:  keyword.New(lists.Words...),
	}
}

// Check returns the first offending term found in text. Empty blocklists
// always pass.
func (f *Filter) Check(text string) (string, bool) {
	if term, ok := f.topics.Match(text); ok {
		return term, true
	}
	if term, ok := f.words.Match(text); ok {
		return term, true
	}
	return "", false
}

// Empty reports whether both blocklists are empty.
func (f *Filter) Empty() bool {
	return f.topics.Empty() && f.words.Empty()
}
