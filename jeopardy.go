// Jeopardy board
//
// Each game ID owns a single board of categories and clues, fetched from the
// trivia API when someone presses Start. Every browser opened on the same game
// ID is a view of that one board: there are no players, turns, or scores.
//
// Features:
// - WebSockets per game ID: /path/:gameid and /path/:gameid/ws
// - One hub goroutine per game serializes start and reveal events
// - Setup fetches run off the hub goroutine; a second Start while loading is ignored
// - Each clue reveals question, then answer, then stays put
// - Boards auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - QR code of the board URL, for opening it on a second screen

package main

import (
	"context"
	"crypto/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	gameIDLength  = 8
	qrSize        = 320
	sendQueueSize = 16
)

// Messages coming from clients
type ClientMessage struct {
	Type string `json:"type"`           // "start", "reveal"
	Cell string `json:"cell,omitempty"` // reveal: "<category>-<clue>"
}

// StateMessage carries the loading view and, once loaded, the whole board.
// It is sent on connect and whenever loading starts or ends.
type StateMessage struct {
	Type    string      `json:"type"` // "state"
	Loading LoadingView `json:"loading"`
	Board   *BoardView  `json:"board"`
}

// CellMessage is sent after a reveal changed a cell.
type CellMessage struct {
	Type string   `json:"type"` // "cell"
	Cell CellView `json:"cell"`
}

// SimpleMessage is for notifications ("setup_failed").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	conn   *websocket.Conn
	send   chan any
	viewID string
}

type revealRequest struct {
	client *Client
	cell   CellID
}

type setupResult struct {
	categories []Category
	err        error
	took       time.Duration
}

type Hub struct {
	id      string
	clients map[*Client]bool
	session *Session
	source  BoardSource

	register chan *Client
	unreg    chan *Client
	starts   chan *Client
	reveals  chan revealRequest
	loaded   chan setupResult

	done      chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	mu sync.RWMutex

	closed     bool
	createdAt  time.Time
	lastActive time.Time
}

func newHub(cfg *Config, gameID string, source BoardSource) *Hub {
	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		id:         gameID,
		clients:    make(map[*Client]bool),
		session:    NewSession(cfg.categories, cfg.clues),
		source:     source,
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		starts:     make(chan *Client),
		reveals:    make(chan revealRequest),
		loaded:     make(chan setupResult),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		createdAt:  now,
		lastActive: now,
	}
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case <-h.done:
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.closed {
				close(c.send)
				h.mu.Unlock()
				continue
			}
			h.lastActive = time.Now()
			h.clients[c] = true
			h.sendLocked(c, h.stateMessage())
			h.mu.Unlock()

			logf(cfg, "GAMES: View %s joined %s", c.viewID, h.id)

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

			logf(cfg, "GAMES: View %s left %s", c.viewID, h.id)

		case c := <-h.starts:
			h.handleStart(cfg, c)

		case rr := <-h.reveals:
			h.handleReveal(cfg, rr)

		case res := <-h.loaded:
			h.handleLoaded(cfg, res)
		}
	}
}

func (h *Hub) stateMessage() StateMessage {
	loading, board := h.session.View()

	return StateMessage{
		Type:    "state",
		Loading: loading,
		Board:   board,
	}
}

// sendLocked queues msg for one client, dropping the client if its queue is
// full. Assumes h.mu is held.
func (h *Hub) sendLocked(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		h.sendLocked(client, msg)
	}
}

func (h *Hub) broadcast(msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.broadcastLocked(msg)
}

// handleStart begins loading a fresh board unless one is already loading.
func (h *Hub) handleStart(cfg *Config, c *Client) {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()

	if !h.session.BeginSetup() {
		logf(cfg, "GAMES: Ignored start from %s in %s, already loading", c.viewID, h.id)

		return
	}

	logf(cfg, "GAMES: Loading new board for %s", h.id)

	h.broadcast(h.stateMessage())

	go h.fetch()
}

// fetch runs the setup sequence away from the hub goroutine, so that the
// hub keeps answering registrations while the API is slow.
func (h *Hub) fetch() {
	start := time.Now()

	categories, err := h.source.LoadBoard(h.ctx)

	select {
	case h.loaded <- setupResult{categories: categories, err: err, took: time.Since(start)}:
	case <-h.done:
	}
}

func (h *Hub) handleLoaded(cfg *Config, res setupResult) {
	err := h.session.FinishSetup(res.categories, res.err)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	if err != nil {
		logErr(err, "GAMES: Failed to load board for %s", h.id)

		h.broadcastLocked(SimpleMessage{
			Type:    "setup_failed",
			Message: "Could not load a new board. Please try again.",
		})
	} else {
		logf(cfg, "GAMES: Loaded board for %s in %s", h.id, res.took.Round(time.Millisecond))
	}

	h.broadcastLocked(h.stateMessage())
}

func (h *Hub) handleReveal(cfg *Config, rr revealRequest) {
	cell, changed, err := h.session.Reveal(rr.cell)
	if err != nil {
		logf(cfg, "GAMES: Ignored reveal of %s from %s in %s: %v", rr.cell, rr.client.viewID, h.id, err)

		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	if !changed {
		return
	}

	logf(cfg, "GAMES: Cell %s now showing %s in %s", cell.ID, cell.Showing, h.id)

	h.broadcastLocked(CellMessage{
		Type: "cell",
		Cell: cell,
	})
}

// closeAll stops the hub and disconnects all clients (used by reaper).
func (h *Hub) closeAll() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.cancel()
	})

	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated board.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
	source      BoardSource
}

func newGameManager(ctx context.Context, idleTimeout time.Duration, source BoardSource) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: idleTimeout,
		source:      source,
	}

	if idleTimeout > 0 {
		go gm.reaperLoop(ctx)
	}

	return gm
}

func (gm *GameManager) getHub(cfg *Config, gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(cfg, gameID, gm.source)
	gm.hubs[gameID] = hub
	go hub.run(cfg)

	return hub
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	const max = byte(255 - (256 % len(letters)))

	for {
		out := make([]byte, 0, gameIDLength)
		buf := make([]byte, gameIDLength*2)

		for len(out) < gameIDLength {
			if _, err := rand.Read(buf); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}

			for _, b := range buf {
				if b > max || len(out) == gameIDLength {
					continue
				}
				out = append(out, letters[int(b)%len(letters)])
			}
		}

		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reap removes hubs that have been idle since before cutoff.
func (gm *GameManager) reap(cutoff time.Time) int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	reaped := 0
	for id, hub := range gm.hubs {
		hub.mu.RLock()
		last := hub.lastActive
		hub.mu.RUnlock()

		if last.Before(cutoff) {
			delete(gm.hubs, id)
			go hub.closeAll()
			reaped++
		}
	}

	return reaped
}

// reaperLoop periodically removes hubs that have been idle longer than
// idleTimeout, and closes every hub once ctx is done.
func (gm *GameManager) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			gm.reap(time.Now().Add(time.Hour))

			return
		case <-ticker.C:
			gm.reap(time.Now().Add(-gm.idleTimeout))
		}
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Str("game", gameID).Str("remote", realIP(r)).Msg("GAMES: WebSocket upgrade failed")
			return
		}

		hub := gm.getHub(cfg, gameID)

		client := &Client{
			conn:   conn,
			send:   make(chan any, sendQueueSize),
			viewID: uuid.NewString(),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "start":
			select {
			case h.starts <- c:
			case <-h.done:
				return
			}
		case "reveal":
			id, err := ParseCellID(msg.Cell)
			if err != nil {
				continue
			}

			select {
			case h.reveals <- revealRequest{client: c, cell: id}:
			case <-h.done:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// boardURL rebuilds the absolute URL of a board from a request for one of
// its subpaths, respecting TLS and X-Forwarded-Proto.
func boardURL(r *http.Request, suffix string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}

	return scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, suffix)
}

// serveQRCode renders a PNG QR code pointing at the board, so it can be
// opened on another screen.
func serveQRCode(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if ps.ByName("gameid") == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		png, err := qrcode.Encode(boardURL(r, "/qr"), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

func serveBoardPage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		data, err := assets.ReadFile("assets/jeopardy/index.html")
		if err != nil {
			errs <- err
			http.Error(w, "board page unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		if _, err := w.Write(data); err != nil {
			errs <- err
			return
		}

		logf(cfg, "SERVE: Board %s to %s", ps.ByName("gameid"), realIP(r))
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerJeopardyGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
func registerJeopardyGame(ctx context.Context, cfg *Config, path string, mux *httprouter.Router, source BoardSource, errs chan<- error) *GameManager {
	gm := newGameManager(ctx, cfg.sessionTimeout, source)

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", serveBoardPage(cfg, errs))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", serveQRCode(cfg, errs))

	return gm
}
