package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestInsertPostIfNew(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	published := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	rec := PostRecord{Slug: "s", Title: "T", Link: "https://blog.example/p", Summary: "sum", Source: "Blog", PublishedAt: published}

	mock.ExpectExec("INSERT INTO posts").
		WithArgs(rec.Slug, rec.Title, rec.Link, rec.Summary, rec.Author, rec.Source, rec.PublishedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("ON CONFLICT \\(link\\) DO NOTHING").
		WithArgs(rec.Slug, rec.Title, rec.Link, rec.Summary, rec.Author, rec.Source, rec.PublishedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := st.InsertPostIfNew(context.Background(), rec)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}
	inserted, err = st.InsertPostIfNew(context.Background(), rec)
	if err != nil || inserted {
		t.Fatalf("duplicate insert: inserted=%v err=%v", inserted, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListPostsClampsLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now().UTC()
	mock.ExpectQuery("FROM posts").WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "title", "link", "summary", "author", "source", "published_at", "created_at"}).
			AddRow("1", "a", "A", "https://x/a", "", "Jane", "X", now, now).
			AddRow("2", "b", "B", "https://x/b", "", nil, "X", now, now))

	posts, err := st.ListPosts(context.Background(), 5000)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 2 || posts[0].Author != "Jane" || posts[1].Author != "" {
		t.Fatalf("unexpected posts %+v", posts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUsers(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (email, password_hash) VALUES ($1,$2) RETURNING id`)).
		WithArgs("admin@example.com", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, password_hash FROM users WHERE email=$1`)).
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("u1", "hash"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, password_hash FROM users WHERE email=$1`)).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}))

	id, err := st.CreateUser(context.Background(), "admin@example.com", "hash")
	if err != nil || id != "u1" {
		t.Fatalf("CreateUser: id=%q err=%v", id, err)
	}
	id, hash, err := st.GetUserByEmail(context.Background(), "admin@example.com")
	if err != nil || id != "u1" || hash != "hash" {
		t.Fatalf("GetUserByEmail: %q %q %v", id, hash, err)
	}
	if _, _, err := st.GetUserByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
