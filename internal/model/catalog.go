package model

import "time"

// Author of one or more books.
type Author struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Category groups books.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Book is a catalog title with a number of owned copies (Stock).
type Book struct {
	ID         int64     `json:"id"`
	CategoryID int64     `json:"category_id"`
	AuthorID   int64     `json:"author_id"`
	Title      string    `json:"title"`
	ISBN       string    `json:"isbn"`
	Publisher  string    `json:"publisher,omitempty"`
	Year       int       `json:"year,omitempty"`
	Stock      int       `json:"stock"`
	CoverMime  string    `json:"cover_mime,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	AuthorName   string `json:"author_name,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
	ActiveLoans  int    `json:"active_loans"`
	Available    int    `json:"available_copies"`
}

// AvailableCopies is stock minus active loans, never negative.
func (b *Book) AvailableCopies() int {
	if n := b.Stock - b.ActiveLoans; n > 0 {
		return n
	}
	return 0
}
