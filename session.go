package main

import (
	"context"
	"sync"
)

const (
	buttonStart   = "Start!"
	buttonRestart = "Restart!"
	buttonLoading = "Loading..."
)

// BoardSource produces the categories for a fresh board.
type BoardSource interface {
	LoadBoard(ctx context.Context) ([]Category, error)
}

// LoadingView is the state of the start button and spinner.
type LoadingView struct {
	Loading  bool   `json:"loading"`
	Button   string `json:"button"`
	Disabled bool   `json:"disabled"`
	Spinner  bool   `json:"spinner"`
}

// Session is one game's board plus its busy flag. The board is only ever
// replaced as a whole, and only by FinishSetup.
type Session struct {
	mu sync.Mutex

	categories int
	clues      int

	board   *Board
	loading bool
}

func NewSession(categories, clues int) *Session {
	return &Session{
		categories: categories,
		clues:      clues,
	}
}

// BeginSetup clears the board and enters the loading state. It returns
// false, changing nothing, if a setup is already running.
func (s *Session) BeginSetup() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading {
		return false
	}

	s.loading = true
	s.board = nil

	return true
}

// FinishSetup leaves the loading state. On success the categories become
// the new board; on failure the board stays empty and the error is returned.
func (s *Session) FinishSetup(categories []Category, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = false

	if err != nil {
		return err
	}

	board, err := NewBoard(categories, s.categories, s.clues)
	if err != nil {
		return err
	}

	s.board = board

	return nil
}

// Setup runs a whole setup against src. ran is false when another setup
// was already in progress, in which case nothing happens.
func (s *Session) Setup(ctx context.Context, src BoardSource) (ran bool, err error) {
	if !s.BeginSetup() {
		return false, nil
	}

	categories, err := src.LoadBoard(ctx)

	return true, s.FinishSetup(categories, err)
}

// Reveal advances a cell. Clicks while loading or before the first board
// are ignored.
func (s *Session) Reveal(id CellID) (CellView, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading || s.board == nil {
		return CellView{}, false, nil
	}

	return s.board.Reveal(id)
}

func (s *Session) Loading() LoadingView {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadingLocked()
}

func (s *Session) loadingLocked() LoadingView {
	switch {
	case s.loading:
		return LoadingView{Loading: true, Button: buttonLoading, Disabled: true, Spinner: true}
	case s.board != nil:
		return LoadingView{Button: buttonRestart}
	default:
		return LoadingView{Button: buttonStart}
	}
}

// View returns the loading view and, when a board exists, its rendering.
func (s *Session) View() (LoadingView, *BoardView) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.board == nil {
		return s.loadingLocked(), nil
	}

	board := s.board.View()

	return s.loadingLocked(), &board
}

// Categories returns a copy of the current board's categories, or nil.
func (s *Session) Categories() []Category {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.board == nil {
		return nil
	}

	return s.board.Categories()
}
