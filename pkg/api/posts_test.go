package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/uuid"

	"linkshare/pkg/censor"
	"linkshare/pkg/storage"
	"linkshare/pkg/storage/memdb"
)

var allTitles = []string{
	"The Twelve-Factor App",
	"Go 1.24 Release Notes",
	"A Tour of Go",
	"Effective GO",
	"Designing Data-Intensive Applications",
}

func TestAPI_dashboardHandler(t *testing.T) {
	db := memdb.New()
	e := newTestEnv(t, db, Options{Categories: []string{"Programming", " Science "}})
	loadPosts(t, db)
	_, cookie := e.newUser(t, "alice")

	tests := []struct {
		name       string
		query      string
		wantTitles []string
		wantHidden []string
	}{
		{
			name:       "No filter",
			query:      "",
			wantTitles: allTitles,
		},
		{
			name:       "Category All",
			query:      "?category=All",
			wantTitles: allTitles,
		},
		{
			name:       "Search is case-insensitive",
			query:      "?search=gO",
			wantTitles: []string{"Go 1.24 Release Notes", "A Tour of Go", "Effective GO"},
			wantHidden: []string{"The Twelve-Factor App", "Designing Data-Intensive Applications"},
		},
		{
			name:       "Category",
			query:      "?category=Books",
			wantTitles: []string{"Effective GO", "Designing Data-Intensive Applications"},
			wantHidden: []string{"A Tour of Go", "The Twelve-Factor App"},
		},
		{
			name:       "Search and category",
			query:      "?search=go&category=Programming",
			wantTitles: []string{"Go 1.24 Release Notes", "A Tour of Go"},
			wantHidden: []string{"Effective GO"},
		},
		{
			name:       "Regex metacharacters are literal",
			query:      "?search=" + url.QueryEscape("G.*"),
			wantHidden: allTitles,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(http.MethodGet, "/dashboard"+tt.query, nil, cookie)
			assertStatus(t, rr, http.StatusOK)
			assertBodyContains(t, rr, tt.wantTitles...)
			assertBodyNotContains(t, rr, tt.wantHidden...)
		})
	}

	rr := e.do(http.MethodGet, "/dashboard?search=Tour&category=Programming", nil, cookie)
	assertBodyContains(t, rr,
		`value="Tour"`,
		`<option value="Programming" selected>`,
		`<option value="Science">`,
		storage.DeletedUserName,
	)
	assertBodyNotContains(t, rr, `<option value="Architecture">`)

	rr = e.do(http.MethodGet, "/dashboard", nil, cookie)
	assertBodyContains(t, rr, `<option value="Architecture">`)
}

func TestAPI_dashboardHandlerGroupsNewestFirst(t *testing.T) {
	db := memdb.New()
	e := newTestEnv(t, db, Options{})
	loadPosts(t, db)
	_, cookie := e.newUser(t, "alice")

	body := e.do(http.MethodGet, "/dashboard?category=Programming", nil, cookie).Body.String()
	newer := strings.Index(body, "Go 1.24 Release Notes")
	older := strings.Index(body, "A Tour of Go")
	if newer < 0 || older < 0 || newer > older {
		t.Errorf("want newer post before older post, got positions %d and %d", newer, older)
	}

	body = e.do(http.MethodGet, "/dashboard", nil, cookie).Body.String()
	last := -1
	for _, h := range []string{"<h2>Architecture</h2>", "<h2>Books</h2>", "<h2>Programming</h2>"} {
		i := strings.Index(body, h)
		if i <= last {
			t.Errorf("want heading %q after the previous one, got position %d", h, i)
		}
		last = i
	}
}

func TestAPI_dashboardHandlerError(t *testing.T) {
	db := &failingStore{Storage: memdb.New(), failPosts: true}
	e := newTestEnv(t, db, Options{})
	_, cookie := e.newUser(t, "alice")

	rr := e.do(http.MethodGet, "/dashboard?search=go", nil, cookie)
	assertStatus(t, rr, http.StatusInternalServerError)
	assertBodyContains(t, rr, msgFetchPosts, "No posts yet.")
}

func TestAPI_searchHandler(t *testing.T) {
	db := memdb.New()
	e := newTestEnv(t, db, Options{})
	loadPosts(t, db)

	tests := []struct {
		name       string
		search     string
		wantTitles []string
		wantHidden []string
	}{
		{
			name:       "Substring ignoring category",
			search:     "GO",
			wantTitles: []string{"Go 1.24 Release Notes", "A Tour of Go", "Effective GO"},
			wantHidden: []string{"The Twelve-Factor App"},
		},
		{
			name:       "Empty search matches all",
			search:     "",
			wantTitles: allTitles,
		},
		{
			name:       "No match",
			search:     "x-x-x",
			wantHidden: allTitles,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(http.MethodGet, "/search?search="+url.QueryEscape(tt.search), nil, nil)
			assertStatus(t, rr, http.StatusOK)
			assertBodyContains(t, rr, tt.wantTitles...)
			assertBodyNotContains(t, rr, tt.wantHidden...)
		})
	}

	failing := newTestEnv(t, &failingStore{Storage: memdb.New(), failPosts: true}, Options{})
	rr := failing.do(http.MethodGet, "/search?search=go", nil, nil)
	assertStatus(t, rr, http.StatusInternalServerError)
	if got := strings.TrimSpace(rr.Body.String()); got != msgInternal {
		t.Errorf("want body %q, got %q", msgInternal, got)
	}
}

func postForm(title, link, category string) url.Values {
	return url.Values{"title": {title}, "link": {link}, "category": {category}}
}

func TestAPI_submitPostHandler(t *testing.T) {
	for _, path := range []string{"/post-description", "/post-link"} {
		t.Run(path, func(t *testing.T) {
			db := memdb.New()
			e := newTestEnv(t, db, Options{})
			alice, cookie := e.newUser(t, "alice")

			rr := e.do(http.MethodPost, path, postForm("  Effective Go ", "https://go.dev/doc/effective_go", "  Go   Docs "), cookie)
			assertRedirect(t, rr, http.StatusSeeOther, "/dashboard")

			posts, err := db.Posts(context.Background(), storage.PostFilter{})
			if err != nil {
				t.Fatal(err)
			}
			if len(posts) != 1 {
				t.Fatalf("want 1 post, got %d", len(posts))
			}
			p := posts[0]
			if p.Title != "Effective Go" || p.Category != "Go Docs" || p.AuthorID != alice.ID {
				t.Errorf("unexpected post %+v", p)
			}
			if p.Likes == nil || p.Dislikes == nil || p.Comments == nil {
				t.Errorf("want empty non-nil collections, got %+v", p)
			}
			if p.CreatedAt.IsZero() {
				t.Error("want creation time set")
			}
		})
	}
}

func TestAPI_submitPostHandlerErrors(t *testing.T) {
	c := censor.New()
	if err := c.LoadFromJSON(testWordsPath); err != nil {
		t.Fatalf("failed to load words: %v", err)
	}

	tests := []struct {
		name       string
		form       url.Values
		failCreate bool
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "Missing title",
			form:       postForm("", "https://go.dev", "Go"),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Title is required",
		},
		{
			name:       "Not a web link",
			form:       postForm("Go", "ftp://go.dev/file", "Go"),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Link must be a valid http(s) URL",
		},
		{
			name:       "Blank category",
			form:       postForm("Go", "https://go.dev", "   "),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Category is required",
		},
		{
			name:       "Forbidden title",
			form:       postForm("Total spam", "https://go.dev", "Go"),
			wantStatus: http.StatusUnprocessableEntity,
			wantMsg:    msgTitleForbidden,
		},
		{
			name:       "Storage failure",
			form:       postForm("Go", "https://go.dev", "Go"),
			failCreate: true,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    msgPostDescription,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := memdb.New()
			e := newTestEnv(t, &failingStore{Storage: mem, failCreatePost: tt.failCreate}, Options{Censor: c})
			_, cookie := e.newUser(t, "alice")

			rr := e.do(http.MethodPost, "/post-link", tt.form, cookie)
			assertStatus(t, rr, tt.wantStatus)
			assertBodyContains(t, rr, tt.wantMsg)

			posts, err := mem.Posts(context.Background(), storage.PostFilter{})
			if err != nil {
				t.Fatal(err)
			}
			if len(posts) != 0 {
				t.Errorf("want no post stored, got %d", len(posts))
			}
		})
	}
}

func TestAPI_voteHandlers(t *testing.T) {
	db := memdb.New()
	e := newTestEnv(t, db, Options{})
	testPosts := loadPosts(t, db)
	alice, cookie := e.newUser(t, "alice")
	id := testPosts[0].ID
	likePath := fmt.Sprintf("/like-post/%s", id)
	dislikePath := fmt.Sprintf("/dislike-post/%s", id)

	rr := e.do(http.MethodGet, likePath, nil, cookie)
	assertRedirect(t, rr, http.StatusFound, "/dashboard")

	rr = e.do(http.MethodGet, likePath, nil, cookie)
	assertStatus(t, rr, http.StatusBadRequest)
	assertBodyContains(t, rr, msgAlreadyLiked)
	if p := e.post(t, id); !reflect.DeepEqual(p.Likes, []uuid.UUID{alice.ID}) {
		t.Errorf("want exactly one like by alice, got %v", p.Likes)
	}

	rr = e.do(http.MethodGet, dislikePath, nil, cookie)
	assertRedirect(t, rr, http.StatusFound, "/dashboard")
	p := e.post(t, id)
	if len(p.Likes) != 0 || !reflect.DeepEqual(p.Dislikes, []uuid.UUID{alice.ID}) {
		t.Errorf("want like moved to dislikes, got likes %v dislikes %v", p.Likes, p.Dislikes)
	}

	rr = e.do(http.MethodGet, dislikePath, nil, cookie)
	assertStatus(t, rr, http.StatusBadRequest)
	assertBodyContains(t, rr, msgAlreadyDisliked)

	rr = e.do(http.MethodGet, likePath, nil, cookie)
	assertRedirect(t, rr, http.StatusFound, "/dashboard")
	p = e.post(t, id)
	if !reflect.DeepEqual(p.Likes, []uuid.UUID{alice.ID}) || len(p.Dislikes) != 0 {
		t.Errorf("want dislike moved to likes, got likes %v dislikes %v", p.Likes, p.Dislikes)
	}

	for _, path := range []string{
		"/like-post/not-a-uuid",
		"/dislike-post/" + uuid.Must(uuid.NewV4()).String(),
	} {
		rr := e.do(http.MethodGet, path, nil, cookie)
		assertStatus(t, rr, http.StatusNotFound)
		assertBodyContains(t, rr, msgPostNotFound)
	}
}

func TestAPI_concurrentLikes(t *testing.T) {
	db := memdb.New()
	e := newTestEnv(t, db, Options{})
	testPosts := loadPosts(t, db)
	id := testPosts[0].ID

	const numUsers = 25
	cookies := make([]*http.Cookie, numUsers)
	for i := range cookies {
		_, cookies[i] = e.newUser(t, fmt.Sprintf("user%02d", i))
	}

	var wg sync.WaitGroup
	codes := make([]int, numUsers)
	for i, c := range cookies {
		wg.Add(1)
		go func(i int, c *http.Cookie) {
			defer wg.Done()
			codes[i] = e.do(http.MethodGet, fmt.Sprintf("/like-post/%s", id), nil, c).Code
		}(i, c)
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusFound {
			t.Errorf("request %d: want status code %v, got %v", i, http.StatusFound, code)
		}
	}
	if p := e.post(t, id); len(p.Likes) != numUsers {
		t.Errorf("want %d likes, got %d", numUsers, len(p.Likes))
	}
}

func TestAPI_updatePostGivesUp(t *testing.T) {
	mem := memdb.New()
	db := &failingStore{Storage: mem}
	e := newTestEnv(t, db, Options{})
	testPosts := loadPosts(t, db)
	_, cookie := e.newUser(t, "alice")
	db.conflictSaves = true

	rr := e.do(http.MethodGet, fmt.Sprintf("/like-post/%s", testPosts[0].ID), nil, cookie)
	assertStatus(t, rr, http.StatusInternalServerError)
	assertBodyContains(t, rr, msgInternal)
	if db.saves != maxUpdateAttempts {
		t.Errorf("want %d save attempts, got %d", maxUpdateAttempts, db.saves)
	}
}

func TestAPI_commentHandler(t *testing.T) {
	db := memdb.New()
	e := newTestEnv(t, db, Options{})
	testPosts := loadPosts(t, db)
	alice, cookie := e.newUser(t, "alice")
	id := testPosts[0].ID
	path := fmt.Sprintf("/comment/%s", id)

	for i := 0; i < storage.MaxComments; i++ {
		rr := e.do(http.MethodPost, path, url.Values{"text": {fmt.Sprintf("comment %d", i)}}, cookie)
		assertRedirect(t, rr, http.StatusSeeOther, "/dashboard")
	}

	rr := e.do(http.MethodPost, path, url.Values{"text": {"one too many"}}, cookie)
	assertStatus(t, rr, http.StatusBadRequest)
	assertBodyContains(t, rr, msgCommentLimit)

	p := e.post(t, id)
	if len(p.Comments) != storage.MaxComments {
		t.Fatalf("want %d comments, got %d", storage.MaxComments, len(p.Comments))
	}
	for i, c := range p.Comments {
		if c.Text != fmt.Sprintf("comment %d", i) || c.AuthorID != alice.ID || c.CreatedAt.IsZero() {
			t.Errorf("unexpected comment %d: %+v", i, c)
		}
	}

	rr = e.do(http.MethodGet, "/dashboard", nil, cookie)
	assertBodyContains(t, rr, "<strong>alice</strong>: comment 9", "Comments are closed")
}

func TestAPI_commentHandlerErrors(t *testing.T) {
	c := censor.New()
	if err := c.LoadFromJSON(testWordsPath); err != nil {
		t.Fatalf("failed to load words: %v", err)
	}

	db := memdb.New()
	e := newTestEnv(t, db, Options{Censor: c})
	testPosts := loadPosts(t, db)
	_, cookie := e.newUser(t, "alice")
	path := fmt.Sprintf("/comment/%s", testPosts[0].ID)

	tests := []struct {
		name       string
		path       string
		text       string
		wantStatus int
		wantMsg    string
	}{
		{name: "Empty text", path: path, text: "   ", wantStatus: http.StatusBadRequest, wantMsg: "Comment text is required"},
		{name: "Too long", path: path, text: strings.Repeat("a", maxCommentLen+1), wantStatus: http.StatusBadRequest, wantMsg: "Comment text must be at most 1000 characters"},
		{name: "Unknown post", path: "/comment/" + uuid.Must(uuid.NewV4()).String(), text: "hi", wantStatus: http.StatusNotFound, wantMsg: msgPostNotFound},
		{name: "Invalid id", path: "/comment/42", text: "hi", wantStatus: http.StatusNotFound, wantMsg: msgPostNotFound},
		{name: "Forbidden words", path: path, text: "what a scam", wantStatus: http.StatusUnprocessableEntity, wantMsg: msgCommentForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(http.MethodPost, tt.path, url.Values{"text": {tt.text}}, cookie)
			assertStatus(t, rr, tt.wantStatus)
			assertBodyContains(t, rr, tt.wantMsg)
		})
	}

	if p := e.post(t, testPosts[0].ID); len(p.Comments) != 0 {
		t.Errorf("want no comments stored, got %d", len(p.Comments))
	}
}
