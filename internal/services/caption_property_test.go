package services

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Captions without '#' always gain at least one default tag.
// Captions containing '#' never gain anything beyond trimming.
func TestProperty_EnrichCaptionHashtagRule(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(42)

	properties := gopter.NewProperties(parameters)

	properties.Property("captions without hashtags get the defaults", prop.ForAll(
		func(raw string) bool {
			got := EnrichCaption(raw)
			if !strings.HasPrefix(got, strings.TrimSpace(raw)) {
				return false
			}
			for _, tag := range DefaultHashtags {
				if strings.Contains(got, tag) {
					return true
				}
			}
			return false
		},
		gen.AnyString().SuchThat(func(s string) bool { return !strings.Contains(s, "#") }),
	))

	properties.Property("captions with hashtags are only trimmed", prop.ForAll(
		func(prefix, suffix string) bool {
			raw := prefix + "#" + suffix
			return EnrichCaption(raw) == strings.TrimSpace(raw)
		},
		gen.AlphaString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestProperty_TopicHashtagsUniqueAndNonEmpty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(42)

	properties := gopter.NewProperties(parameters)

	words := gen.OneConstOf("clean", "fix", "paint", "lawn", "auto", "sneaker", "drain", "wiring", "happy", "today")

	properties.Property("topic tags are deduplicated and include the generic tag", prop.ForAll(
		func(picked []string) bool {
			tags := TopicHashtags(strings.Join(picked, " "))
			seen := make(map[string]bool)
			for _, tag := range tags {
				if seen[tag] || !strings.HasPrefix(tag, "#") {
					return false
				}
				seen[tag] = true
			}
			return seen[genericTopicTag]
		},
		gen.SliceOf(words),
	))

	properties.TestingRun(t)
}
