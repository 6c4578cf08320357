package domain

import "time"

// CommentVisibility controls who can read a comment.
type CommentVisibility string

const (
	VisibilityPublic CommentVisibility = "PUBLIC"
	VisibilityStaff  CommentVisibility = "STAFF"
)

// IsValid reports whether v is a known visibility.
func (v CommentVisibility) IsValid() bool {
	return v == VisibilityPublic || v == VisibilityStaff
}

// WorkUpdate is a progress entry posted by the assigned staff member.
type WorkUpdate struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Comment captures discussion on a ticket thread.
type Comment struct {
	Author     string            `json:"author"`
	AuthorRole Role              `json:"author_role"`
	Text       string            `json:"text"`
	Timestamp  time.Time         `json:"timestamp"`
	Visibility CommentVisibility `json:"visibility"`
}

// InternalNote is an admin/staff-only annotation.
type InternalNote struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// MediaRef points at an attachment held by object storage.
type MediaRef struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id,omitempty"`
	AddedBy  string `json:"added_by,omitempty"`
}

// Rating is the resident's write-once satisfaction score.
type Rating struct {
	Score   int       `json:"score"`
	Comment string    `json:"comment,omitempty"`
	RatedAt time.Time `json:"rated_at"`
}
