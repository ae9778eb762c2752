// Package intent maps free text to a coarse intent tag by keyword matching.
package intent

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/jvs-project/warden/pkg/config"
	"github.com/jvs-project/warden/pkg/model"
)

// rule is one keyword set evaluated in priority order.
type rule struct {
	tag      model.IntentTag
	keywords []string // case-folded
}

// Classifier is an ordered-priority keyword matcher. It is immutable after
// construction and safe for concurrent use.
type Classifier struct {
	rules []rule
}

// New builds a classifier from the configured keyword sets. Sets are checked
// in the order Completion, Review, Test, Implementation; the first set with a
// matching keyword wins.
func New(cfg config.IntentConfig) *Classifier {
	return &Classifier{rules: []rule{
		{tag: model.IntentCompletion, keywords: foldAll(cfg.Completion)},
		{tag: model.IntentReview, keywords: foldAll(cfg.Review)},
		{tag: model.IntentTest, keywords: foldAll(cfg.Test)},
		{tag: model.IntentImplementation, keywords: foldAll(cfg.Implementation)},
	}}
}

// Default returns a classifier over the default keyword sets.
func Default() *Classifier {
	return New(config.Default().Intent)
}

// Classify returns the intent tag for text.
func (c *Classifier) Classify(text string) model.IntentTag {
	tag, _ := c.ClassifyMatch(text)
	return tag
}

// ClassifyMatch returns the intent tag together with the keyword that
// produced it. The keyword is empty for IntentNeutral.
func (c *Classifier) ClassifyMatch(text string) (model.IntentTag, string) {
	if strings.TrimSpace(text) == "" {
		return model.IntentNeutral, ""
	}
	folded := fold(text)
	for _, r := range c.rules {
		for _, kw := range r.keywords {
			if strings.Contains(folded, kw) {
				return r.tag, kw
			}
		}
	}
	return model.IntentNeutral, ""
}

// fold applies Unicode case folding. A Caser carries state, so each call
// gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

func foldAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		out = append(out, fold(kw))
	}
	return out
}
