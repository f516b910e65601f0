// Package storage defines the documents of the link-sharing service and the
// contract every persistence backend implements.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid"
)

// MaxComments is the number of comments a single post can hold.
const MaxComments = 10

var (
	ErrConnectDB       = errors.New("unable to establish DB connection")
	ErrDBNotResponding = errors.New("DB not responding")

	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrPostNotFound = errors.New("post not found")
	// ErrPostConflict is returned by SavePost when the post was modified
	// after it had been read.
	ErrPostConflict = errors.New("post was modified concurrently")

	ErrAlreadyLiked    = errors.New("post already liked by user")
	ErrAlreadyDisliked = errors.New("post already disliked by user")
	ErrCommentLimit    = errors.New("maximum comment limit reached")
)

type User struct {
	ID           uuid.UUID `bson:"_id" json:"id"`
	Username     string    `bson:"username" json:"username"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

type Comment struct {
	Text      string    `bson:"text" json:"text"`
	AuthorID  uuid.UUID `bson:"author_id" json:"author_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type Post struct {
	ID        uuid.UUID   `bson:"_id" json:"id"`
	Title     string      `bson:"title" json:"title"`
	Link      string      `bson:"link" json:"link"`
	Category  string      `bson:"category" json:"category"`
	AuthorID  uuid.UUID   `bson:"author_id" json:"author_id"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
	Likes     []uuid.UUID `bson:"likes" json:"likes"`
	Dislikes  []uuid.UUID `bson:"dislikes" json:"dislikes"`
	Comments  []Comment   `bson:"comments" json:"comments"`
	Version   int64       `bson:"version" json:"version"`
}

// PostFilter selects posts. Zero values match everything.
type PostFilter struct {
	// TitleContains is matched case-insensitively as a literal substring.
	TitleContains string
	// Category is matched exactly.
	Category string
}

// Storage is implemented by the mongo, postgres and memdb packages.
type Storage interface {
	// CreateUser inserts u, generating ID and CreatedAt when they are zero.
	// Returns ErrEmailTaken if a user with the same email exists.
	CreateUser(ctx context.Context, u User) (User, error)
	// UserByEmail returns ErrUserNotFound if no user has the given email.
	UserByEmail(ctx context.Context, email string) (User, error)
	// Usernames resolves user ids into usernames. Unknown ids are omitted.
	Usernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)

	// CreatePost inserts p, generating ID and CreatedAt when they are zero.
	CreatePost(ctx context.Context, p Post) (Post, error)
	// Post returns ErrPostNotFound if the post does not exist.
	Post(ctx context.Context, id uuid.UUID) (Post, error)
	// Posts returns the posts matching f, newest first.
	Posts(ctx context.Context, f PostFilter) ([]Post, error)
	// SavePost replaces the votes and comments of a post previously read with
	// Post. It fails with ErrPostConflict if the stored version differs from
	// p.Version and bumps the version on success.
	SavePost(ctx context.Context, p Post) (Post, error)
}

// NewUser fills the generated fields of a user about to be inserted.
func NewUser(u User) (User, error) {
	if u.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return User{}, err
		}
		u.ID = id
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	return u, nil
}

// NewPost fills the generated fields of a post about to be inserted and makes
// sure its collections are empty rather than nil.
func NewPost(p Post) (Post, error) {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return Post{}, err
		}
		p.ID = id
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if p.Likes == nil {
		p.Likes = []uuid.UUID{}
	}
	if p.Dislikes == nil {
		p.Dislikes = []uuid.UUID{}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}

	return p, nil
}
