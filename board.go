/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const placeholder = "?"

var (
	ErrBoardShape = errors.New("board does not have the configured number of categories and clues")
	ErrNoSuchCell = errors.New("no such cell")
	ErrBadCellID  = errors.New("malformed cell id")
	errBadShowing = errors.New("unknown showing state")
)

var showingStrings = [...]string{"unset", "question", "answer"}

// Showing is how far a clue has been revealed.
type Showing uint8

const (
	ShowingUnset Showing = iota
	ShowingQuestion
	ShowingAnswer
)

func (s Showing) String() string {
	if int(s) < len(showingStrings) {
		return showingStrings[s]
	}
	return "Showing(" + strconv.Itoa(int(s)) + ")"
}

func (s Showing) MarshalText() ([]byte, error) {
	if int(s) >= len(showingStrings) {
		return nil, errBadShowing
	}
	return []byte(showingStrings[s]), nil
}

func (s *Showing) UnmarshalText(b []byte) error {
	for i, name := range showingStrings {
		if string(b) == name {
			*s = Showing(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", errBadShowing, b)
}

type Clue struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Showing  Showing `json:"showing"`
}

// advance moves the clue one step along unset -> question -> answer and
// reports whether anything changed. Answer is terminal.
func (c *Clue) advance() bool {
	switch c.Showing {
	case ShowingUnset:
		c.Showing = ShowingQuestion
	case ShowingQuestion:
		c.Showing = ShowingAnswer
	default:
		return false
	}
	return true
}

func (c *Clue) text() string {
	switch c.Showing {
	case ShowingQuestion:
		return c.Question
	case ShowingAnswer:
		return c.Answer
	default:
		return placeholder
	}
}

type Category struct {
	Title string `json:"title"`
	Clues []Clue `json:"clues"`
}

// CellID addresses one cell of the grid. Its string form, "2-4", is also
// the DOM id of the cell in the browser.
type CellID struct {
	Category int
	Clue     int
}

func (id CellID) String() string {
	return strconv.Itoa(id.Category) + "-" + strconv.Itoa(id.Clue)
}

func ParseCellID(s string) (CellID, error) {
	cat, clue, ok := strings.Cut(s, "-")
	if !ok {
		return CellID{}, fmt.Errorf("%w: %q", ErrBadCellID, s)
	}

	c, err := strconv.Atoi(cat)
	if err != nil || c < 0 {
		return CellID{}, fmt.Errorf("%w: %q", ErrBadCellID, s)
	}

	q, err := strconv.Atoi(clue)
	if err != nil || q < 0 {
		return CellID{}, fmt.Errorf("%w: %q", ErrBadCellID, s)
	}

	return CellID{Category: c, Clue: q}, nil
}

type CellView struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Showing  Showing `json:"showing"`
	Disabled bool    `json:"disabled"`
}

// BoardView is the rendered grid: one header per category, then one row per
// clue index with one cell per category.
type BoardView struct {
	Headers []string     `json:"headers"`
	Rows    [][]CellView `json:"rows"`
}

type Board struct {
	categories []Category
	clues      int
}

// NewBoard takes ownership of categories, which must hold exactly
// numCategories entries of exactly numClues clues each.
func NewBoard(categories []Category, numCategories, numClues int) (*Board, error) {
	if len(categories) != numCategories {
		return nil, fmt.Errorf("%w: have %d categories, want %d", ErrBoardShape, len(categories), numCategories)
	}

	for i := range categories {
		if len(categories[i].Clues) != numClues {
			return nil, fmt.Errorf("%w: category %q has %d clues, want %d",
				ErrBoardShape, categories[i].Title, len(categories[i].Clues), numClues)
		}
	}

	return &Board{categories: categories, clues: numClues}, nil
}

func (b *Board) clue(id CellID) (*Clue, error) {
	if id.Category < 0 || id.Category >= len(b.categories) || id.Clue < 0 || id.Clue >= b.clues {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchCell, id)
	}

	return &b.categories[id.Category].Clues[id.Clue], nil
}

func cellView(id CellID, c *Clue) CellView {
	return CellView{
		ID:       id.String(),
		Text:     c.text(),
		Showing:  c.Showing,
		Disabled: c.Showing == ShowingAnswer,
	}
}

// Cell returns the current view of a single cell.
func (b *Board) Cell(id CellID) (CellView, error) {
	c, err := b.clue(id)
	if err != nil {
		return CellView{}, err
	}

	return cellView(id, c), nil
}

// Reveal handles a click on a cell: an unset clue shows its question, a
// question shows its answer and disables the cell, and an answer is left
// alone. The returned bool is false when the click changed nothing.
func (b *Board) Reveal(id CellID) (CellView, bool, error) {
	c, err := b.clue(id)
	if err != nil {
		return CellView{}, false, err
	}

	changed := c.advance()

	return cellView(id, c), changed, nil
}

func (b *Board) View() BoardView {
	view := BoardView{
		Headers: make([]string, 0, len(b.categories)),
		Rows:    make([][]CellView, 0, b.clues),
	}

	for _, cat := range b.categories {
		view.Headers = append(view.Headers, cat.Title)
	}

	for clueIdx := 0; clueIdx < b.clues; clueIdx++ {
		row := make([]CellView, 0, len(b.categories))
		for catIdx := range b.categories {
			id := CellID{Category: catIdx, Clue: clueIdx}
			row = append(row, cellView(id, &b.categories[catIdx].Clues[clueIdx]))
		}
		view.Rows = append(view.Rows, row)
	}

	return view
}

// Categories returns a copy of the board's categories.
func (b *Board) Categories() []Category {
	out := make([]Category, len(b.categories))
	for i, cat := range b.categories {
		out[i] = Category{
			Title: cat.Title,
			Clues: append([]Clue(nil), cat.Clues...),
		}
	}
	return out
}
