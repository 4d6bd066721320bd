package platform

import "fmt"

// PostInput is a new top-level submission. Exactly one of Body or URL should
// be set (self post vs link post).
type PostInput struct {
	Community string `json:"community"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	URL       string `json:"url,omitempty"`
}

func (in *PostInput) Validate() error {
	if in.Community == "" {
		return fmt.Errorf("post requires a target community")
	}
	if in.Title == "" {
		return fmt.Errorf("post requires a title")
	}
	if in.Body == "" && in.URL == "" {
		return fmt.Errorf("post requires either body text or a link URL")
	}
	if in.Body != "" && in.URL != "" {
		return fmt.Errorf("post cannot have both body text and a link URL")
	}
	return nil
}

type PostResult struct {
	ExternalID string `json:"id"`
	URL        string `json:"url"`
}

type CommentInput struct {
	ParentID string `json:"parentId"`
	Text     string `json:"text"`
}

func (in *CommentInput) Validate() error {
	if in.ParentID == "" {
		return fmt.Errorf("comment requires a parent item")
	}
	if in.Text == "" {
		return fmt.Errorf("comment requires text")
	}
	return nil
}

type CommentResult struct {
	ExternalID string `json:"id"`
}

type VoteInput struct {
	ItemID    string `json:"itemId"`
	Direction int    `json:"direction"`
}

func (in *VoteInput) Validate() error {
	if in.ItemID == "" {
		return fmt.Errorf("vote requires an item")
	}
	if in.Direction < -1 || in.Direction > 1 {
		return fmt.Errorf("vote direction must be -1, 0, or 1")
	}
	return nil
}
