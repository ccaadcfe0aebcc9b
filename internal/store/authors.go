package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

// CreateAuthor creates a new author.
func CreateAuthor(ctx context.Context, db DBTX, name, bio string) (*model.Author, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO authors (name, bio) VALUES (?, ?)`, name, bio,
	)
	if err != nil {
		return nil, fmt.Errorf("creating author: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting author id: %w", err)
	}

	return GetAuthor(ctx, db, id)
}

// GetAuthor returns an author by ID.
func GetAuthor(ctx context.Context, db DBTX, id int64) (*model.Author, error) {
	a := &model.Author{}
	var bio sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, bio, created_at FROM authors WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &bio, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting author: %w", err)
	}
	a.Bio = bio.String
	return a, nil
}

// ListAuthors returns all authors ordered by name.
func ListAuthors(ctx context.Context, db DBTX) ([]model.Author, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, bio, created_at FROM authors ORDER BY name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing authors: %w", err)
	}
	defer rows.Close()

	var authors []model.Author
	for rows.Next() {
		var a model.Author
		var bio sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &bio, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning author: %w", err)
		}
		a.Bio = bio.String
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

// UpdateAuthor updates an author's name and biography.
func UpdateAuthor(ctx context.Context, db DBTX, id int64, name, bio string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE authors SET name = ?, bio = ? WHERE id = ?`, name, bio, id,
	)
	if err != nil {
		return fmt.Errorf("updating author: %w", err)
	}
	return nil
}

// AuthorHasBooks reports whether any book references the author.
func AuthorHasBooks(ctx context.Context, db DBTX, id int64) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM books WHERE author_id = ?`, id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("counting author books: %w", err)
	}
	return n > 0, nil
}

// DeleteAuthor removes an author.
func DeleteAuthor(ctx context.Context, db DBTX, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM authors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting author: %w", err)
	}
	return nil
}
