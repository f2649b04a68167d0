package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func testCategories(numCategories, numClues int) []Category {
	categories := make([]Category, 0, numCategories)
	for c := 0; c < numCategories; c++ {
		cat := Category{Title: fmt.Sprintf("Category %d", c)}
		for q := 0; q < numClues; q++ {
			cat.Clues = append(cat.Clues, Clue{
				Question: fmt.Sprintf("Question %d-%d", c, q),
				Answer:   fmt.Sprintf("Answer %d-%d", c, q),
			})
		}
		categories = append(categories, cat)
	}
	return categories
}

func testBoard(t *testing.T) *Board {
	t.Helper()

	b, err := NewBoard(testCategories(6, 5), 6, 5)
	if err != nil {
		t.Fatalf("NewBoard: %v", err)
	}
	return b
}

func TestNewBoardShape(t *testing.T) {
	cases := []struct {
		name       string
		categories []Category
		wantErr    bool
	}{
		{"exact", testCategories(6, 5), false},
		{"too few categories", testCategories(5, 5), true},
		{"too many categories", testCategories(7, 5), true},
		{"short category", func() []Category {
			c := testCategories(6, 5)
			c[3].Clues = c[3].Clues[:4]
			return c
		}(), true},
		{"empty", nil, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBoard(tc.categories, 6, 5)
			if tc.wantErr {
				if !errors.Is(err, ErrBoardShape) {
					t.Fatalf("NewBoard err = %v, want ErrBoardShape", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBoard: %v", err)
			}
		})
	}
}

func TestRevealSequence(t *testing.T) {
	b := testBoard(t)
	id := CellID{Category: 2, Clue: 3}

	cell, changed, err := b.Reveal(id)
	if err != nil || !changed {
		t.Fatalf("first reveal: changed=%v err=%v", changed, err)
	}
	if cell.Text != "Question 2-3" || cell.Showing != ShowingQuestion || cell.Disabled {
		t.Fatalf("first reveal = %+v, want question shown and enabled", cell)
	}

	cell, changed, err = b.Reveal(id)
	if err != nil || !changed {
		t.Fatalf("second reveal: changed=%v err=%v", changed, err)
	}
	if cell.Text != "Answer 2-3" || cell.Showing != ShowingAnswer || !cell.Disabled {
		t.Fatalf("second reveal = %+v, want answer shown and disabled", cell)
	}

	again, changed, err := b.Reveal(id)
	if err != nil {
		t.Fatalf("third reveal: %v", err)
	}
	if changed {
		t.Fatal("third reveal reported a change")
	}
	if again != cell {
		t.Fatalf("third reveal = %+v, want unchanged %+v", again, cell)
	}
}

func TestRevealOnlyTouchesOneCell(t *testing.T) {
	b := testBoard(t)

	if _, _, err := b.Reveal(CellID{Category: 0, Clue: 0}); err != nil {
		t.Fatal(err)
	}

	for _, row := range b.View().Rows {
		for _, cell := range row {
			if cell.ID == "0-0" {
				continue
			}
			if cell.Showing != ShowingUnset || cell.Text != placeholder {
				t.Fatalf("cell %s = %+v, want untouched", cell.ID, cell)
			}
		}
	}
}

func TestShowingNeverGoesBackward(t *testing.T) {
	b := testBoard(t)
	id := CellID{Category: 5, Clue: 4}

	prev := ShowingUnset
	for i := 0; i < 10; i++ {
		cell, _, err := b.Reveal(id)
		if err != nil {
			t.Fatal(err)
		}
		if cell.Showing < prev {
			t.Fatalf("click %d: showing went from %s to %s", i, prev, cell.Showing)
		}
		prev = cell.Showing
	}

	if prev != ShowingAnswer {
		t.Fatalf("final state = %s, want answer", prev)
	}
}

func TestRevealOutOfRange(t *testing.T) {
	b := testBoard(t)

	for _, id := range []CellID{{6, 0}, {0, 5}, {-1, 0}, {0, -1}} {
		if _, _, err := b.Reveal(id); !errors.Is(err, ErrNoSuchCell) {
			t.Errorf("Reveal(%v) err = %v, want ErrNoSuchCell", id, err)
		}
	}
}

func TestBoardView(t *testing.T) {
	b := testBoard(t)
	view := b.View()

	if len(view.Headers) != 6 {
		t.Fatalf("headers = %d, want 6", len(view.Headers))
	}
	if view.Headers[4] != "Category 4" {
		t.Errorf("header 4 = %q", view.Headers[4])
	}
	if len(view.Rows) != 5 {
		t.Fatalf("rows = %d, want 5", len(view.Rows))
	}

	for clueIdx, row := range view.Rows {
		if len(row) != 6 {
			t.Fatalf("row %d has %d cells, want 6", clueIdx, len(row))
		}
		for catIdx, cell := range row {
			want := CellID{Category: catIdx, Clue: clueIdx}.String()
			if cell.ID != want {
				t.Errorf("cell at row %d col %d has id %q, want %q", clueIdx, catIdx, cell.ID, want)
			}
			if cell.Text != placeholder || cell.Disabled {
				t.Errorf("fresh cell %s = %+v", cell.ID, cell)
			}
		}
	}
}

func TestBoardCategoriesIsACopy(t *testing.T) {
	b := testBoard(t)

	cats := b.Categories()
	cats[0].Clues[0].Showing = ShowingAnswer
	cats[0].Title = "changed"

	cell, err := b.Cell(CellID{})
	if err != nil {
		t.Fatal(err)
	}
	if cell.Showing != ShowingUnset {
		t.Fatal("mutating the copy changed the board")
	}
	if b.View().Headers[0] != "Category 0" {
		t.Fatal("mutating the copy changed a title")
	}
}

func TestParseCellID(t *testing.T) {
	cases := []struct {
		in      string
		want    CellID
		wantErr bool
	}{
		{"0-0", CellID{0, 0}, false},
		{"5-4", CellID{5, 4}, false},
		{"12-30", CellID{12, 30}, false},
		{"", CellID{}, true},
		{"3", CellID{}, true},
		{"a-1", CellID{}, true},
		{"1-b", CellID{}, true},
		{"-1-2", CellID{}, true},
		{"1--2", CellID{}, true},
		{"1-2-3", CellID{}, true},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseCellID(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrBadCellID) {
					t.Fatalf("ParseCellID(%q) err = %v, want ErrBadCellID", tc.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCellID(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("ParseCellID(%q) = %v, want %v", tc.in, got, tc.want)
			}
			if got.String() != tc.in {
				t.Fatalf("String() = %q, want %q", got.String(), tc.in)
			}
		})
	}
}

func TestShowingJSON(t *testing.T) {
	cell := CellView{ID: "1-2", Text: "x", Showing: ShowingQuestion}

	data, err := json.Marshal(cell)
	if err != nil {
		t.Fatal(err)
	}

	want := `{"id":"1-2","text":"x","showing":"question","disabled":false}`
	if string(data) != want {
		t.Fatalf("json = %s, want %s", data, want)
	}

	var s Showing
	if err := s.UnmarshalText([]byte("bogus")); err == nil {
		t.Fatal("UnmarshalText accepted an unknown state")
	}
}
