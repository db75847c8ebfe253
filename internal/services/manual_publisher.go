package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ManualPlaceholderPrefix marks post ids that were generated locally and are waiting for
// a human to confirm the real permalink.
const ManualPlaceholderPrefix = "manual_"

// Compile-time interface compliance check
var _ Publisher = (*ManualPublisher)(nil)

// ManualPublisher is the human-assisted publishing adapter. It never touches the network:
// CreatePost hands back instructions and a placeholder id, DeletePost is symbolic because
// the human controls the actual platform account.
type ManualPublisher struct {
	newID func() string
}

// NewManualPublisher creates a manual publishing adapter.
func NewManualPublisher() *ManualPublisher {
	return &ManualPublisher{
		newID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

// IsManualPlaceholder reports whether id was generated by the manual adapter.
func IsManualPlaceholder(id string) bool {
	return strings.HasPrefix(id, ManualPlaceholderPrefix)
}

// CreatePost prepares a manual post. It never fails.
func (m *ManualPublisher) CreatePost(ctx context.Context, content PostContent) (*PostResult, error) {
	tags := TopicHashtags(content.Caption)

	return &PostResult{
		PostID:       ManualPlaceholderPrefix + m.newID(),
		Caption:      content.Caption,
		TopicTags:    tags,
		Instructions: manualInstructions(content.ImageURL, tags),
	}, nil
}

// DeletePost records nothing remotely; the local takedown is the whole operation.
func (m *ManualPublisher) DeletePost(ctx context.Context, postID string) (bool, error) {
	return true, nil
}

func manualInstructions(imageURL string, tags []string) []string {
	steps := []string{
		fmt.Sprintf("Download the photo from %s", imageURL),
		"Open Instagram and start a new post with the downloaded photo",
		"Paste the prepared caption",
	}
	if len(tags) > 0 {
		steps = append(steps, "Optionally add topic hashtags: "+strings.Join(tags, " "))
	}
	steps = append(steps,
		"Share the post",
		"Copy the post link (Share > Copy link)",
		"Confirm the publication here with the copied link",
	)

	for i := range steps {
		steps[i] = fmt.Sprintf("%d. %s", i+1, steps[i])
	}
	return steps
}
