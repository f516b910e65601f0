package storage

import (
	"slices"
	"time"

	"github.com/gofrs/uuid"
)

// Like records a like of userID, dropping a previous dislike by the same user.
func (p *Post) Like(userID uuid.UUID) error {
	if slices.Contains(p.Likes, userID) {
		return ErrAlreadyLiked
	}

	p.Dislikes = remove(p.Dislikes, userID)
	p.Likes = append(p.Likes, userID)
	return nil
}

// Dislike records a dislike of userID, dropping a previous like by the same user.
func (p *Post) Dislike(userID uuid.UUID) error {
	if slices.Contains(p.Dislikes, userID) {
		return ErrAlreadyDisliked
	}

	p.Likes = remove(p.Likes, userID)
	p.Dislikes = append(p.Dislikes, userID)
	return nil
}

// AddComment appends a comment unless the post already holds MaxComments.
func (p *Post) AddComment(text string, authorID uuid.UUID) error {
	if len(p.Comments) >= MaxComments {
		return ErrCommentLimit
	}

	p.Comments = append(p.Comments, Comment{
		Text:      text,
		AuthorID:  authorID,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	})
	return nil
}

func (p *Post) LikedBy(userID uuid.UUID) bool {
	return slices.Contains(p.Likes, userID)
}

func (p *Post) DislikedBy(userID uuid.UUID) bool {
	return slices.Contains(p.Dislikes, userID)
}

// remove deletes every occurrence of id without reusing the backing array of ids.
func remove(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
