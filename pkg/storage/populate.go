package storage

import (
	"context"

	"github.com/gofrs/uuid"
)

// DeletedUserName is shown for references to users that no longer resolve.
const DeletedUserName = "[deleted]"

type CommentView struct {
	Comment
	AuthorName string
}

// PostView is a post with its user references resolved into display names.
type PostView struct {
	Post
	AuthorName   string
	CommentViews []CommentView
}

// Populate resolves the author of every post and comment with a single
// Usernames lookup.
func Populate(ctx context.Context, s Storage, posts []Post) ([]PostView, error) {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, p := range posts {
		add(p.AuthorID)
		for _, c := range p.Comments {
			add(c.AuthorID)
		}
	}

	names := map[uuid.UUID]string{}
	if len(ids) > 0 {
		var err error
		names, err = s.Usernames(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	name := func(id uuid.UUID) string {
		if n, ok := names[id]; ok {
			return n
		}
		return DeletedUserName
	}

	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		v := PostView{
			Post:         p,
			AuthorName:   name(p.AuthorID),
			CommentViews: make([]CommentView, 0, len(p.Comments)),
		}
		for _, c := range p.Comments {
			v.CommentViews = append(v.CommentViews, CommentView{Comment: c, AuthorName: name(c.AuthorID)})
		}
		views = append(views, v)
	}

	return views, nil
}
