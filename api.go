/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

const maxResponseSize = 4 << 20

var (
	ErrUnexpectedStatus  = errors.New("unexpected response status")
	ErrMalformedCategory = errors.New("malformed category")
	ErrTooFewCategories  = errors.New("not enough usable categories")
	ErrTooFewClues       = errors.New("not enough usable clues")
)

type apiCategorySummary struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	CluesCount *int   `json:"clues_count"`
}

type apiClue struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Value    *int   `json:"value"`
}

type apiCategory struct {
	ID    int       `json:"id"`
	Title string    `json:"title"`
	Clues []apiClue `json:"clues"`
}

// APIClient fetches categories and clues from a jService-style trivia API.
type APIClient struct {
	base *url.URL
	http *http.Client

	pool       int
	categories int
	clues      int

	mu  sync.Mutex
	rng *rand.Rand
}

func NewAPIClient(cfg *Config) (*APIClient, error) {
	base, err := parseAPIURL(cfg.apiURL)
	if err != nil {
		return nil, err
	}

	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, err
	}

	return &APIClient{
		base:       base,
		http:       &http.Client{Timeout: cfg.apiTimeout},
		pool:       cfg.categoryPool,
		categories: cfg.categories,
		clues:      cfg.clues,
		rng:        rand.New(rand.NewChaCha8(seed)),
	}, nil
}

func parseAPIURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", raw, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q: must be an absolute http(s) url", raw)
	}

	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	return u, nil
}

func (c *APIClient) getJSON(ctx context.Context, endpoint string, query url.Values, into any) error {
	u := c.base.ResolveReference(&url.URL{Path: endpoint, RawQuery: query.Encode()})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "jeopardy/"+releaseVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

		return fmt.Errorf("%w: GET %s: %s", ErrUnexpectedStatus, u.Redacted(), resp.Status)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(into); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", u.Redacted(), err)
	}

	return nil
}

// CategoryIDs asks for a large pool of categories and picks the configured
// number of them at random, never the same one twice. Categories known to
// hold too few clues for a full column are skipped.
func (c *APIClient) CategoryIDs(ctx context.Context) ([]int, error) {
	var summaries []apiCategorySummary

	err := c.getJSON(ctx, "categories", url.Values{"count": {strconv.Itoa(c.pool)}}, &summaries)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	ids := make([]int, 0, len(summaries))
	for _, s := range summaries {
		if s.ID <= 0 {
			continue
		}
		if s.CluesCount != nil && *s.CluesCount < c.clues {
			continue
		}
		ids = append(ids, s.ID)
	}

	if len(ids) < c.categories {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrTooFewCategories, len(ids), c.categories)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return sampleSize(c.rng, ids, c.categories), nil
}

// Category fetches one category and keeps a random selection of its clues,
// with every clue unrevealed. Clue values are dropped.
func (c *APIClient) Category(ctx context.Context, id int) (Category, error) {
	var cat apiCategory

	err := c.getJSON(ctx, "category", url.Values{"id": {strconv.Itoa(id)}}, &cat)
	if err != nil {
		return Category{}, fmt.Errorf("category %d: %w", id, err)
	}

	title := strings.TrimSpace(cat.Title)
	if title == "" {
		return Category{}, fmt.Errorf("category %d: %w: missing title", id, ErrMalformedCategory)
	}

	usable := make([]apiClue, 0, len(cat.Clues))
	for _, clue := range cat.Clues {
		if strings.TrimSpace(clue.Question) == "" || strings.TrimSpace(clue.Answer) == "" {
			continue
		}
		usable = append(usable, clue)
	}

	if len(usable) < c.clues {
		return Category{}, fmt.Errorf("category %d: %w: have %d, want %d", id, ErrTooFewClues, len(usable), c.clues)
	}

	c.mu.Lock()
	picked := sampleSize(c.rng, usable, c.clues)
	c.mu.Unlock()

	clues := make([]Clue, 0, len(picked))
	for _, clue := range picked {
		clues = append(clues, Clue{
			Question: clue.Question,
			Answer:   clue.Answer,
			Showing:  ShowingUnset,
		})
	}

	return Category{Title: title, Clues: clues}, nil
}

// LoadBoard picks the categories and then fetches each one in turn.
func (c *APIClient) LoadBoard(ctx context.Context) ([]Category, error) {
	ids, err := c.CategoryIDs(ctx)
	if err != nil {
		return nil, err
	}

	categories := make([]Category, 0, len(ids))
	for _, id := range ids {
		cat, err := c.Category(ctx, id)
		if err != nil {
			return nil, err
		}
		categories = append(categories, cat)
	}

	return categories, nil
}

// sampleSize returns up to n distinct elements of items in random order,
// leaving items untouched.
func sampleSize[T any](rng *rand.Rand, items []T, n int) []T {
	n = min(n, len(items))

	pool := append([]T(nil), items...)
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	return pool[:n]
}
