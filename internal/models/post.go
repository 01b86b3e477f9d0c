package models

import "time"

// Post is a blog entry. Owner is the id of the user that created it and is
// never changed after creation.
type Post struct {
	ID        string    `json:"id" bson:"_id"`
	Title     string    `json:"title" bson:"title"`
	Content   string    `json:"content" bson:"content"`
	Slug      string    `json:"slug" bson:"slug"`
	Owner     string    `json:"owner" bson:"owner"`
	Author    string    `json:"author" bson:"author"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// OwnedBy reports whether userID may mutate the post.
func (p *Post) OwnedBy(userID string) bool {
	return p.Owner != "" && p.Owner == userID
}

type CreatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdatePostRequest carries a partial update. Nil fields are left unchanged.
type UpdatePostRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type DeletePostResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
