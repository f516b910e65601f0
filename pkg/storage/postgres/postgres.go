package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"linkshare/pkg/storage"
)

// uniqueViolation is the SQLSTATE of a unique constraint violation.
const uniqueViolation = "23505"

//go:embed schema.sql
var schema string

type Store struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, conStr string) (*Store, error) {
	db, err := pgxpool.Connect(ctx, conStr)
	if err != nil {
		return nil, err
	}
	s := Store{
		db: db,
	}

	return &s, nil
}

// Migrate creates the tables and indexes if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() {
	s.db.Close()
}

func (s *Store) CreateUser(ctx context.Context, u storage.User) (storage.User, error) {
	u, err := storage.NewUser(u)
	if err != nil {
		return storage.User{}, err
	}
	u.Email = storage.NormalizeEmail(u.Email)

	_, err = s.db.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		u.ID,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return storage.User{}, storage.ErrEmailTaken
		}
		return storage.User{}, err
	}

	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (u storage.User, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE email = $1
	`,
		storage.NormalizeEmail(email),
	).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = storage.ErrUserNotFound
		}
		return storage.User{}, err
	}

	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (s *Store) Usernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	strIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		strIDs = append(strIDs, id.String())
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, username
		FROM users
		WHERE id = ANY($1::uuid[])
	`,
		strIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[uuid.UUID]string, len(ids))
	for rows.Next() {
		var (
			id   uuid.UUID
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return names, nil
}

func (s *Store) CreatePost(ctx context.Context, p storage.Post) (storage.Post, error) {
	p, err := storage.NewPost(p)
	if err != nil {
		return storage.Post{}, err
	}

	comments, err := json.Marshal(p.Comments)
	if err != nil {
		return storage.Post{}, err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO posts (id, title, link, category, author_id, created_at, likes, dislikes, comments, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		p.ID,
		p.Title,
		p.Link,
		p.Category,
		p.AuthorID,
		p.CreatedAt,
		idStrings(p.Likes),
		idStrings(p.Dislikes),
		comments,
		p.Version,
	)
	if err != nil {
		return storage.Post{}, err
	}

	return p, nil
}

// Post retrieves a post by its ID. It returns storage.ErrPostNotFound if there is no such post.
func (s *Store) Post(ctx context.Context, id uuid.UUID) (storage.Post, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE id = $1
	`,
		id,
	)

	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = storage.ErrPostNotFound
		}
		return storage.Post{}, err
	}

	return p, nil
}

// Posts returns the posts matching f ordered by creation time descending.
func (s *Store) Posts(ctx context.Context, f storage.PostFilter) ([]storage.Post, error) {
	query, args := buildPostsQuery(f)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []storage.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}

// SavePost stores the votes and comments of p when the row still holds the
// version p was read at.
func (s *Store) SavePost(ctx context.Context, p storage.Post) (storage.Post, error) {
	comments := p.Comments
	if comments == nil {
		comments = []storage.Comment{}
	}
	b, err := json.Marshal(comments)
	if err != nil {
		return storage.Post{}, err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE posts
		SET likes = $1, dislikes = $2, comments = $3, version = version + 1
		WHERE id = $4 AND version = $5
	`,
		idStrings(p.Likes),
		idStrings(p.Dislikes),
		b,
		p.ID,
		p.Version,
	)
	if err != nil {
		return storage.Post{}, err
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, p.ID).Scan(&exists)
		if err != nil {
			return storage.Post{}, err
		}
		if !exists {
			return storage.Post{}, storage.ErrPostNotFound
		}
		return storage.Post{}, storage.ErrPostConflict
	}

	p.Comments = comments
	if p.Likes == nil {
		p.Likes = []uuid.UUID{}
	}
	if p.Dislikes == nil {
		p.Dislikes = []uuid.UUID{}
	}
	p.Version++
	return p, nil
}

const postColumns = "id, title, link, category, author_id, created_at, likes, dislikes, comments, version"

// buildPostsQuery returns the SELECT statement and its arguments for f.
func buildPostsQuery(f storage.PostFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.TitleContains != "" {
		args = append(args, "%"+escapeLike(f.TitleContains)+"%")
		conds = append(conds, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + postColumns + " FROM posts")
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC")

	return sb.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanPost(row pgx.Row) (storage.Post, error) {
	var (
		p               storage.Post
		likes, dislikes []string
		comments        []byte
	)
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Link,
		&p.Category,
		&p.AuthorID,
		&p.CreatedAt,
		&likes,
		&dislikes,
		&comments,
		&p.Version,
	)
	if err != nil {
		return storage.Post{}, err
	}

	p.CreatedAt = p.CreatedAt.UTC()
	if p.Likes, err = parseIDs(likes); err != nil {
		return storage.Post{}, err
	}
	if p.Dislikes, err = parseIDs(dislikes); err != nil {
		return storage.Post{}, err
	}
	p.Comments = []storage.Comment{}
	if len(comments) > 0 {
		if err := json.Unmarshal(comments, &p.Comments); err != nil {
			return storage.Post{}, fmt.Errorf("failed to decode comments of post %s: %w", p.ID, err)
		}
	}

	return p, nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func parseIDs(ss []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(ss))
	for _, s := range ss {
		id, err := uuid.FromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
