package memdb

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/uuid"

	"linkshare/pkg/storage"
)

type Store struct {
	mu    sync.Mutex
	users map[uuid.UUID]storage.User
	posts map[uuid.UUID]storage.Post
}

func New() *Store {
	db := Store{
		users: make(map[uuid.UUID]storage.User),
		posts: make(map[uuid.UUID]storage.Post),
	}

	return &db
}

func (db *Store) CreateUser(ctx context.Context, u storage.User) (storage.User, error) {
	u, err := storage.NewUser(u)
	if err != nil {
		return storage.User{}, err
	}
	u.Email = storage.NormalizeEmail(u.Email)

	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.users {
		if existing.Email == u.Email {
			return storage.User{}, storage.ErrEmailTaken
		}
	}
	db.users[u.ID] = u

	return u, nil
}

func (db *Store) UserByEmail(ctx context.Context, email string) (storage.User, error) {
	email = storage.NormalizeEmail(email)

	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Email == email {
			return u, nil
		}
	}

	return storage.User{}, storage.ErrUserNotFound
}

func (db *Store) Usernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	names := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if u, ok := db.users[id]; ok {
			names[id] = u.Username
		}
	}

	return names, nil
}

func (db *Store) CreatePost(ctx context.Context, p storage.Post) (storage.Post, error) {
	p, err := storage.NewPost(p)
	if err != nil {
		return storage.Post{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.posts[p.ID] = clonePost(p)

	return p, nil
}

func (db *Store) Post(ctx context.Context, id uuid.UUID) (storage.Post, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.posts[id]
	if !ok {
		return storage.Post{}, storage.ErrPostNotFound
	}

	return clonePost(p), nil
}

func (db *Store) Posts(ctx context.Context, f storage.PostFilter) ([]storage.Post, error) {
	contains := strings.ToLower(f.TitleContains)

	db.mu.Lock()
	posts := make([]storage.Post, 0, len(db.posts))
	for _, p := range db.posts {
		if contains != "" && !strings.Contains(strings.ToLower(p.Title), contains) {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		posts = append(posts, clonePost(p))
	}
	db.mu.Unlock()

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	return posts, nil
}

func (db *Store) SavePost(ctx context.Context, p storage.Post) (storage.Post, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.posts[p.ID]
	if !ok {
		return storage.Post{}, storage.ErrPostNotFound
	}
	if stored.Version != p.Version {
		return storage.Post{}, storage.ErrPostConflict
	}

	stored.Likes = p.Likes
	stored.Dislikes = p.Dislikes
	stored.Comments = p.Comments
	stored.Version++
	db.posts[p.ID] = clonePost(stored)

	return clonePost(stored), nil
}

// clonePost copies the slices of p so callers never share memory with the store.
func clonePost(p storage.Post) storage.Post {
	p.Likes = slices.Clone(p.Likes)
	p.Dislikes = slices.Clone(p.Dislikes)
	p.Comments = slices.Clone(p.Comments)
	if p.Likes == nil {
		p.Likes = []uuid.UUID{}
	}
	if p.Dislikes == nil {
		p.Dislikes = []uuid.UUID{}
	}
	if p.Comments == nil {
		p.Comments = []storage.Comment{}
	}
	return p
}
