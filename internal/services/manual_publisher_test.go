package services

import (
	"context"
	"strings"
	"testing"
)

func TestManualPublisher_CreatePost(t *testing.T) {
	m := NewManualPublisher()

	result, err := m.CreatePost(context.Background(), PostContent{
		ImageURL: "https://lh3.googleusercontent.com/d/abc",
		Caption:  "Sneaker restoration\n\n#beforeandafter",
	})
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}

	if !IsManualPlaceholder(result.PostID) {
		t.Errorf("PostID = %q, want %q prefix", result.PostID, ManualPlaceholderPrefix)
	}
	if strings.Contains(result.PostID, "-") {
		t.Errorf("PostID = %q, placeholder should not contain dashes", result.PostID)
	}
	if result.Simulated {
		t.Error("manual result must not be marked simulated")
	}
	if result.Caption != "Sneaker restoration\n\n#beforeandafter" {
		t.Errorf("Caption = %q", result.Caption)
	}
	if len(result.Instructions) == 0 {
		t.Fatal("expected instructions")
	}
	if !strings.HasPrefix(result.Instructions[0], "1. ") || !strings.Contains(result.Instructions[0], "https://lh3.googleusercontent.com/d/abc") {
		t.Errorf("first instruction = %q, want numbered download step with image url", result.Instructions[0])
	}
	last := result.Instructions[len(result.Instructions)-1]
	if !strings.Contains(last, "Confirm") {
		t.Errorf("last instruction = %q, want confirmation step", last)
	}

	joined := strings.Join(result.Instructions, "\n")
	for _, tag := range result.TopicTags {
		if !strings.Contains(joined, tag) {
			t.Errorf("instructions do not mention topic tag %s", tag)
		}
	}
}

func TestManualPublisher_PlaceholdersAreUnique(t *testing.T) {
	m := NewManualPublisher()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		result, _ := m.CreatePost(context.Background(), PostContent{ImageURL: "https://x.test/a.jpg"})
		if seen[result.PostID] {
			t.Fatalf("duplicate placeholder %q", result.PostID)
		}
		seen[result.PostID] = true
	}
}

func TestManualPublisher_DeletePostIsSymbolic(t *testing.T) {
	ok, err := NewManualPublisher().DeletePost(context.Background(), "manual_abc")
	if err != nil || !ok {
		t.Errorf("DeletePost() = %v, %v; want true, nil", ok, err)
	}
}
