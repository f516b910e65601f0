package memdb

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/gofrs/uuid"

	"linkshare/pkg/storage"
)

const testPostsPath = "../../../test_data/post_examples.json"

func TestStore_CreateUser(t *testing.T) {
	db := New()
	ctx := context.Background()

	u, err := db.CreateUser(ctx, storage.User{Username: "alice", Email: " Alice@Example.com ", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("unexpected error creating user: %v", err)
	}
	if u.ID == uuid.Nil {
		t.Error("want generated user id")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("want normalized email %q, got %q", "alice@example.com", u.Email)
	}

	_, err = db.CreateUser(ctx, storage.User{Username: "alice2", Email: "ALICE@example.com", PasswordHash: "hash"})
	if !errors.Is(err, storage.ErrEmailTaken) {
		t.Errorf("want error %v, got %v", storage.ErrEmailTaken, err)
	}
	if len(db.users) != 1 {
		t.Errorf("want 1 user in DB, got %d", len(db.users))
	}

	got, err := db.UserByEmail(ctx, "alice@EXAMPLE.com")
	if err != nil {
		t.Fatalf("unexpected error retrieving user: %v", err)
	}
	if !reflect.DeepEqual(got, u) {
		t.Errorf("want user\n%+v\n\ngot user\n%+v\n", u, got)
	}

	_, err = db.UserByEmail(ctx, "bob@example.com")
	if !errors.Is(err, storage.ErrUserNotFound) {
		t.Errorf("want error %v, got %v", storage.ErrUserNotFound, err)
	}
}

func TestStore_Usernames(t *testing.T) {
	db := New()
	ctx := context.Background()

	alice, err := db.CreateUser(ctx, storage.User{Username: "alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("unexpected error creating user: %v", err)
	}
	unknown := uuid.Must(uuid.NewV4())

	got, err := db.Usernames(ctx, []uuid.UUID{alice.ID, unknown})
	if err != nil {
		t.Fatalf("unexpected error resolving usernames: %v", err)
	}
	want := map[uuid.UUID]string{alice.ID: "alice"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("want names %v, got %v", want, got)
	}
}

func TestStore_Posts(t *testing.T) {
	db := New()
	ctx := context.Background()

	testPosts, err := LoadTestPosts(testPostsPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range testPosts {
		if _, err := db.CreatePost(ctx, p); err != nil {
			t.Fatalf("unexpected error adding post: %v", err)
		}
	}

	tests := []struct {
		name       string
		filter     storage.PostFilter
		wantTitles []string
	}{
		{
			name:   "No filter, newest first",
			filter: storage.PostFilter{},
			wantTitles: []string{
				"The Twelve-Factor App",
				"Go 1.24 Release Notes",
				"A Tour of Go",
				"Effective GO",
				"Designing Data-Intensive Applications",
			},
		},
		{
			name:       "Title substring, mixed case",
			filter:     storage.PostFilter{TitleContains: "gO"},
			wantTitles: []string{"Go 1.24 Release Notes", "A Tour of Go", "Effective GO"},
		},
		{
			name:       "Category",
			filter:     storage.PostFilter{Category: "Books"},
			wantTitles: []string{"Effective GO", "Designing Data-Intensive Applications"},
		},
		{
			name:       "Title and category",
			filter:     storage.PostFilter{TitleContains: "go", Category: "Books"},
			wantTitles: []string{"Effective GO"},
		},
		{
			name:       "Category is case-sensitive",
			filter:     storage.PostFilter{Category: "books"},
			wantTitles: []string{},
		},
		{
			name:       "No match",
			filter:     storage.PostFilter{TitleContains: "x-x-x"},
			wantTitles: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := db.Posts(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Posts returned error: %v", err)
			}
			gotTitles := []string{}
			for _, p := range posts {
				gotTitles = append(gotTitles, p.Title)
			}
			if !reflect.DeepEqual(gotTitles, tt.wantTitles) {
				t.Errorf("want titles %v, got %v", tt.wantTitles, gotTitles)
			}
		})
	}
}

func TestStore_SavePost(t *testing.T) {
	db := New()
	ctx := context.Background()

	p, err := db.CreatePost(ctx, storage.Post{Title: "t", Link: "https://example.com", Category: "c"})
	if err != nil {
		t.Fatalf("unexpected error adding post: %v", err)
	}

	user := uuid.Must(uuid.NewV4())
	first, err := db.Post(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error retrieving post: %v", err)
	}
	second := first

	if err := first.Like(user); err != nil {
		t.Fatal(err)
	}
	saved, err := db.SavePost(ctx, first)
	if err != nil {
		t.Fatalf("unexpected error saving post: %v", err)
	}
	if saved.Version != first.Version+1 {
		t.Errorf("want version %d, got %d", first.Version+1, saved.Version)
	}

	// second was read before first got saved.
	if err := second.Dislike(user); err != nil {
		t.Fatal(err)
	}
	_, err = db.SavePost(ctx, second)
	if !errors.Is(err, storage.ErrPostConflict) {
		t.Errorf("want error %v, got %v", storage.ErrPostConflict, err)
	}

	got, err := db.Post(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error retrieving post: %v", err)
	}
	if !reflect.DeepEqual(got.Likes, []uuid.UUID{user}) || len(got.Dislikes) != 0 {
		t.Errorf("want only the first save applied, got likes %v dislikes %v", got.Likes, got.Dislikes)
	}

	_, err = db.SavePost(ctx, storage.Post{ID: uuid.Must(uuid.NewV4())})
	if !errors.Is(err, storage.ErrPostNotFound) {
		t.Errorf("want error %v, got %v", storage.ErrPostNotFound, err)
	}
}

func TestStore_PostNotExist(t *testing.T) {
	db := New()

	post, err := db.Post(context.Background(), uuid.FromStringOrNil("01234567-89ab-cdef-0123-456789abcdef"))
	if !errors.Is(err, storage.ErrPostNotFound) {
		t.Errorf("want error %v, got %v", storage.ErrPostNotFound, err)
	}
	if !reflect.DeepEqual(post, storage.Post{}) {
		t.Errorf("want empty post, got post %+v", post)
	}
}
