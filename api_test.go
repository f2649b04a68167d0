package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeAPI mimics the trivia API: /api/categories lists ids 1..count, where
// ids up to shortBelow advertise too few clues, and /api/category returns
// eight clues, two of them blank.
type fakeAPI struct {
	shortBelow int

	mu        sync.Mutex
	counts    []string
	inFlight  atomic.Int32
	maxFlight atomic.Int32
	status    int
	category  func(id int) any
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxFlight.Load()
		if n <= m || f.maxFlight.CompareAndSwap(m, n) {
			break
		}
	}

	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/api/categories":
		count := r.URL.Query().Get("count")

		f.mu.Lock()
		f.counts = append(f.counts, count)
		f.mu.Unlock()

		n, _ := strconv.Atoi(count)
		list := make([]map[string]any, 0, n)
		for id := 1; id <= n; id++ {
			cluesCount := 8
			if id <= f.shortBelow {
				cluesCount = 2
			}
			list = append(list, map[string]any{"id": id, "title": fmt.Sprintf("cat %d", id), "clues_count": cluesCount})
		}
		_ = json.NewEncoder(w).Encode(list)

	case "/api/category":
		id, _ := strconv.Atoi(r.URL.Query().Get("id"))
		if f.category != nil {
			_ = json.NewEncoder(w).Encode(f.category(id))
			return
		}
		_ = json.NewEncoder(w).Encode(fakeCategory(id, 8))

	default:
		http.NotFound(w, r)
	}
}

func fakeCategory(id, clues int) map[string]any {
	list := make([]map[string]any, 0, clues)
	for i := 0; i < clues; i++ {
		q, a := fmt.Sprintf("q%d-%d", id, i), fmt.Sprintf("a%d-%d", id, i)
		if i == 1 {
			q = "  "
		}
		if i == 2 {
			a = ""
		}
		list = append(list, map[string]any{
			"id":          id*100 + i,
			"question":    q,
			"answer":      a,
			"value":       (i + 1) * 200,
			"category_id": id,
		})
	}
	return map[string]any{"id": id, "title": fmt.Sprintf(" cat %d ", id), "clues": list}
}

func newTestAPIClient(t *testing.T, api http.Handler) *APIClient {
	t.Helper()

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := NewAPIClient(&Config{
		apiURL:       srv.URL + "/api",
		apiTimeout:   5 * time.Second,
		categoryPool: 100,
		categories:   6,
		clues:        5,
	})
	if err != nil {
		t.Fatalf("NewAPIClient: %v", err)
	}
	c.rng = rand.New(rand.NewPCG(1, 2))

	return c
}

func TestCategoryIDs(t *testing.T) {
	api := &fakeAPI{shortBelow: 10}
	c := newTestAPIClient(t, api)

	ids, err := c.CategoryIDs(context.Background())
	if err != nil {
		t.Fatalf("CategoryIDs: %v", err)
	}

	if len(ids) != 6 {
		t.Fatalf("got %d ids, want 6", len(ids))
	}

	seen := make(map[int]bool)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("id %d picked twice: %v", id, ids)
		}
		seen[id] = true
		if id <= 10 {
			t.Fatalf("id %d advertises too few clues but was picked", id)
		}
	}

	api.mu.Lock()
	counts := append([]string(nil), api.counts...)
	api.mu.Unlock()

	if len(counts) != 1 || counts[0] != "100" {
		t.Fatalf("count params = %v, want [100]", counts)
	}
}

func TestCategoryIDsTooFew(t *testing.T) {
	c := newTestAPIClient(t, &fakeAPI{shortBelow: 97})

	_, err := c.CategoryIDs(context.Background())
	if !errors.Is(err, ErrTooFewCategories) {
		t.Fatalf("err = %v, want ErrTooFewCategories", err)
	}
}

func TestCategory(t *testing.T) {
	c := newTestAPIClient(t, &fakeAPI{})

	cat, err := c.Category(context.Background(), 42)
	if err != nil {
		t.Fatalf("Category: %v", err)
	}

	if cat.Title != "cat 42" {
		t.Errorf("title = %q, want trimmed %q", cat.Title, "cat 42")
	}
	if len(cat.Clues) != 5 {
		t.Fatalf("got %d clues, want 5", len(cat.Clues))
	}

	seen := make(map[string]bool)
	for _, clue := range cat.Clues {
		if clue.Showing != ShowingUnset {
			t.Errorf("clue %q starts as %s", clue.Question, clue.Showing)
		}
		if strings.TrimSpace(clue.Question) == "" || clue.Answer == "" {
			t.Errorf("blank clue %+v was kept", clue)
		}
		if seen[clue.Question] {
			t.Errorf("clue %q picked twice", clue.Question)
		}
		seen[clue.Question] = true
	}
}

func TestCategoryErrors(t *testing.T) {
	cases := []struct {
		name string
		api  *fakeAPI
		want error
	}{
		{"too few clues", &fakeAPI{category: func(id int) any { return fakeCategory(id, 6) }}, ErrTooFewClues},
		{"missing title", &fakeAPI{category: func(id int) any {
			cat := fakeCategory(id, 8)
			cat["title"] = ""
			return cat
		}}, ErrMalformedCategory},
		{"server error", &fakeAPI{status: http.StatusInternalServerError}, ErrUnexpectedStatus},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestAPIClient(t, tc.api)

			if _, err := c.Category(context.Background(), 7); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCategoryBadJSON(t *testing.T) {
	c := newTestAPIClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title": 12`))
	}))

	if _, err := c.Category(context.Background(), 1); err == nil {
		t.Fatal("Category accepted malformed json")
	}
}

func TestLoadBoard(t *testing.T) {
	api := &fakeAPI{}
	c := newTestAPIClient(t, api)

	cats, err := c.LoadBoard(context.Background())
	if err != nil {
		t.Fatalf("LoadBoard: %v", err)
	}

	if _, err := NewBoard(cats, 6, 5); err != nil {
		t.Fatalf("loaded board has the wrong shape: %v", err)
	}

	if got := api.maxFlight.Load(); got != 1 {
		t.Fatalf("max concurrent requests = %d, want 1", got)
	}
}

func TestLoadBoardCancelled(t *testing.T) {
	c := newTestAPIClient(t, &fakeAPI{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.LoadBoard(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSampleSize(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	for i := 0; i < 50; i++ {
		got := sampleSize(rng, items, 4)
		if len(got) != 4 {
			t.Fatalf("len = %d, want 4", len(got))
		}

		seen := make(map[int]bool)
		for _, v := range got {
			if seen[v] {
				t.Fatalf("sample %v repeats %d", got, v)
			}
			seen[v] = true
		}
	}

	for i, v := range items {
		if v != i+1 {
			t.Fatalf("input was modified: %v", items)
		}
	}

	if got := sampleSize(rng, items[:3], 5); len(got) != 3 {
		t.Fatalf("oversized sample has %d items, want 3", len(got))
	}
}

func TestParseAPIURL(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://rithm-jeopardy.herokuapp.com/api/", "https://rithm-jeopardy.herokuapp.com/api/", false},
		{"http://localhost:9000/api", "http://localhost:9000/api/", false},
		{"ftp://example.com/api", "", true},
		{"/api", "", true},
		{"://", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			u, err := parseAPIURL(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseAPIURL(%q) accepted", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAPIURL(%q): %v", tc.in, err)
			}
			if u.String() != tc.want {
				t.Fatalf("parseAPIURL(%q) = %q, want %q", tc.in, u, tc.want)
			}
		})
	}
}
