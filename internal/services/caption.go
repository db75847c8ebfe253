package services

import (
	"strings"
)

// DefaultHashtags are appended to captions that carry no hashtags of their own.
var DefaultHashtags = []string{
	"#beforeandafter",
	"#transformation",
	"#satisfiedcustomer",
	"#qualitywork",
}

// genericTopicTag is always part of TopicHashtags.
const genericTopicTag = "#service"

// topicKeywords maps caption keywords to topic hashtags. Order is preserved in output.
var topicKeywords = []struct {
	keywords []string
	tags     []string
}{
	{[]string{"clean", "wash", "polish", "dust"}, []string{"#cleaning", "#sparkling"}},
	{[]string{"repair", "fix", "restor"}, []string{"#repair", "#restoration"}},
	{[]string{"paint", "wall", "coat"}, []string{"#painting", "#homeimprovement"}},
	{[]string{"garden", "lawn", "yard", "plant"}, []string{"#gardening", "#landscaping"}},
	{[]string{"car", "auto", "vehicle", "detailing"}, []string{"#cardetailing", "#autocare"}},
	{[]string{"laundry", "shoe", "sneaker", "fabric"}, []string{"#laundry", "#shoecare"}},
	{[]string{"pipe", "plumb", "leak", "drain"}, []string{"#plumbing", "#homeimprovement"}},
	{[]string{"electric", "wiring", "light", "socket"}, []string{"#electrical", "#homeimprovement"}},
}

// EnrichCaption appends the default hashtags when raw has none. A caption that already
// contains '#' is only trimmed.
func EnrichCaption(raw string) string {
	caption := strings.TrimSpace(raw)
	if strings.Contains(caption, "#") {
		return caption
	}
	tags := strings.Join(DefaultHashtags, " ")
	if caption == "" {
		return tags
	}
	return caption + "\n\n" + tags
}

// TopicHashtags derives display hashtags from keywords in the caption.
// The result is deduplicated and always contains at least one tag.
func TopicHashtags(caption string) []string {
	lower := strings.ToLower(caption)
	seen := make(map[string]bool)
	var tags []string
	add := func(tag string) {
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}

	for _, topic := range topicKeywords {
		for _, kw := range topic.keywords {
			if strings.Contains(lower, kw) {
				for _, tag := range topic.tags {
					add(tag)
				}
				break
			}
		}
	}
	add(genericTopicTag)
	return tags
}
