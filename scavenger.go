/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Scavenger Hunt
//
// A team registers its name and members, accepts the safety rules, then has a
// fixed time to photograph every item on a checklist.
//
// Features:
// - One game per random 8-char ID: /hunt/:gameid and /hunt/:gameid/ws
// - Game state lives in a hunt.Game; this file only moves messages around
// - One phone per team: a second device is refused while the first is
//   connected, a reload from the same device takes over its old socket
// - The phone's camera and file chooser are driven over the same socket
// - Captured photos are held in memory and served back per item
// - Games auto-reaped after configurable idle timeout
// - In-browser QR button to share the current game, backed by go-qrcode

package main

import (
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/scavenger/hunt"
)

const (
	gameIDLength   = 8
	maxMessageSize = 16 << 20

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Messages coming from clients. Intents and device replies share one shape.
type ClientMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"` // device replies
	StreamID  string `json:"stream_id,omitempty"`  // camera_opened
	Name      string `json:"name,omitempty"`       // set_team_name, set_member, file_picked
	Index     int    `json:"index,omitempty"`      // set_member, remove_member
	Rule      string `json:"rule,omitempty"`       // acknowledge_rule
	Accepted  bool   `json:"accepted,omitempty"`   // acknowledge_rule
	Item      string `json:"item,omitempty"`       // begin_capture, shoot, complete_capture
	MIME      string `json:"mime,omitempty"`       // complete_capture, frame, file_picked
	Data      []byte `json:"data,omitempty"`       // complete_capture, frame, file_picked
	Width     int    `json:"width,omitempty"`      // camera_opened
	Height    int    `json:"height,omitempty"`     // camera_opened
	Message   string `json:"message,omitempty"`    // camera_failed
}

// StateMessage carries the full game state after every change.
type StateMessage struct {
	Type  string        `json:"type"` // "state"
	State hunt.Snapshot `json:"state"`
}

// SessionInfoMessage is sent on connect.
type SessionInfoMessage struct {
	Type    string `json:"type"` // "session_info"
	GameID  string `json:"game_id"`
	Version string `json:"version"`
}

// SimpleMessage is for generic notifications ("device_in_use", "superseded").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	deviceID string
}

// Hub binds one game to the single device allowed to drive it.
type Hub struct {
	id     string
	game   *hunt.Game
	bridge *deviceBridge
	log    zerolog.Logger

	register chan *Client
	unreg    chan *Client
	quit     chan struct{}
	once     sync.Once

	mu         sync.RWMutex
	client     *Client
	createdAt  time.Time
	lastActive time.Time
}

func newHub(cfg *Config, gameID string, m *metrics) *Hub {
	now := time.Now()
	logger := log.Logger.With().Str("game_id", gameID).Logger()

	h := &Hub{
		id:         gameID,
		log:        logger,
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		quit:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}
	h.bridge = newDeviceBridge(h)

	source := hunt.FallbackSource{
		Primary:    hunt.CameraSource{Devices: h.bridge},
		Fallback:   hunt.ManualSource{Picker: h.bridge},
		Logger:     logger,
		OnFallback: m.fallback,
	}

	h.game = hunt.NewGame(gameID, source, hunt.Options{
		Catalog:  cfg.catalog,
		Duration: cfg.duration,
		Shuffle:  cfg.shuffle,
		Logger:   log.Logger,
		Hooks:    m.hooks(),
	}, h.publish)

	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			return

		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()

			wasController := h.client == c
			if wasController {
				h.client = nil
				close(c.send)
			}
			h.mu.Unlock()

			if wasController {
				h.log.Debug().Msg("GAMES: Device disconnected")
				h.bridge.failAll()
				_ = h.game.CancelCapture()
			}
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.mu.Lock()
	h.lastActive = time.Now()

	if old := h.client; old != nil {
		if old.deviceID != c.deviceID {
			c.send <- SimpleMessage{
				Type:    "device_in_use",
				Message: "This hunt is already running on another phone.",
			}
			close(c.send)
			h.mu.Unlock()

			h.log.Debug().Msg("GAMES: Refused second device")

			return
		}

		h.sendLocked(old, SimpleMessage{
			Type:    "superseded",
			Message: "This hunt was opened in another window.",
		})
		if h.client == old {
			close(old.send)
		}
	}

	h.client = c
	h.sendLocked(c, SessionInfoMessage{
		Type:    "session_info",
		GameID:  h.id,
		Version: releaseVersion,
	})
	h.mu.Unlock()

	// A capture left over from the previous socket cannot complete anymore.
	h.bridge.failAll()
	_ = h.game.CancelCapture()

	snap, err := h.game.Snapshot()
	if err != nil {
		return
	}
	h.publish(snap)
}

// sendLocked queues msg for c, dropping c if it cannot keep up. h.mu must be
// held for writing.
func (h *Hub) sendLocked(c *Client, msg any) bool {
	if h.client != c {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		h.client = nil
		close(c.send)
		h.dropped()
		return false
	}
}

// dropped unblocks capture work that was waiting on a device that fell
// behind. It may run on the game goroutine, so the cancel is queued.
func (h *Hub) dropped() {
	h.log.Debug().Msg("GAMES: Dropped slow device")

	h.bridge.failAll()
	go func() {
		_ = h.game.CancelCapture()
	}()
}

// sendToDevice queues msg for whichever device currently drives the game.
func (h *Hub) sendToDevice(msg any) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client == nil {
		return false
	}
	return h.sendLocked(h.client, msg)
}

// publish runs on the game goroutine after every change.
func (h *Hub) publish(snap hunt.Snapshot) {
	h.sendToDevice(StateMessage{Type: "state", State: snap})
}

func (h *Hub) isController(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	return h.client == c
}

func (h *Hub) connected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.client != nil
}

// handleIntent applies one user action. Rejections are expected while the
// page catches up with the state and are only logged.
func (h *Hub) handleIntent(msg ClientMessage) {
	var err error

	g := h.game

	switch msg.Type {
	case "set_team_name":
		err = g.SetTeamName(msg.Name)
	case "set_member":
		err = g.SetMember(msg.Index, msg.Name)
	case "add_member":
		err = g.AddMember()
	case "remove_member":
		err = g.RemoveMember(msg.Index)
	case "advance_to_rules":
		err = g.AdvanceToRules()
	case "back_to_setup":
		err = g.BackToSetup()
	case "acknowledge_rule":
		err = g.AcknowledgeRule(msg.Rule, msg.Accepted)
	case "start_game":
		err = g.StartGame()
	case "begin_capture":
		err = g.BeginCapture(msg.Item)
	case "shoot":
		err = g.Shoot(msg.Item)
	case "complete_capture":
		var img hunt.Image
		img, err = hunt.ImageFromFile(hunt.File{MIME: msg.MIME, Data: msg.Data})
		if err == nil {
			err = g.CompleteCapture(msg.Item, img)
		}
	case "cancel_capture":
		err = g.CancelCapture()
	case "end_game":
		err = g.EndGame()
	case "new_game":
		err = g.NewGame()
	default:
		return
	}

	if err != nil {
		h.log.Debug().Err(err).Str("intent", msg.Type).Msg("GAMES: Intent rejected")
	}
}

// close disconnects the device and stops the game (used by reaper).
func (h *Hub) close() {
	h.once.Do(func() {
		close(h.quit)

		h.mu.Lock()
		if c := h.client; c != nil {
			h.client = nil
			close(c.send)
			_ = c.conn.Close()
		}
		h.mu.Unlock()

		h.bridge.failAll()
		h.game.Close()
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const deviceCookieName = "scavenger_id"

func getOrSetDeviceID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(deviceCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Error().Err(err).Msg("rand.Read error")
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     deviceCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// GameManager holds a set of hubs keyed by game ID, so each /hunt/$gameid
// is its own isolated game.
type GameManager struct {
	cfg     *Config
	metrics *metrics

	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
	stop        chan struct{}
	once        sync.Once
}

func newGameManager(cfg *Config, m *metrics) *GameManager {
	gm := &GameManager{
		cfg:         cfg,
		metrics:     m,
		hubs:        make(map[string]*Hub),
		idleTimeout: cfg.sessionTimeout,
		stop:        make(chan struct{}),
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gm.cfg, gameID, gm.metrics)
	gm.hubs[gameID] = hub
	gm.metrics.activeGames.Set(float64(len(gm.hubs)))
	go hub.run()
	return hub
}

func (gm *GameManager) lookup(gameID string) (*Hub, bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	hub, ok := gm.hubs[gameID]
	return hub, ok
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, gameIDLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, gameIDLength)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
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

func validGameID(id string) bool {
	if len(id) != gameIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// reaperLoop periodically removes hubs that have been idle longer than
// idleTimeout and have no device attached.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-gm.stop:
			return
		case <-ticker.C:
			gm.reap(time.Now().Add(-gm.idleTimeout))
		}
	}
}

func (gm *GameManager) reap(cutoff time.Time) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		if hub.connected() {
			continue
		}

		hub.mu.RLock()
		last := hub.lastActive
		hub.mu.RUnlock()

		if last.Before(cutoff) {
			delete(gm.hubs, id)
			log.Debug().
				Str("game_id", id).
				Dur("age", time.Since(hub.createdAt).Round(time.Second)).
				Msg("GAMES: Reaped idle game")
			go hub.close()
		}
	}

	gm.metrics.activeGames.Set(float64(len(gm.hubs)))
}

func (gm *GameManager) closeAll() {
	gm.once.Do(func() {
		close(gm.stop)
	})

	gm.mu.Lock()
	hubs := gm.hubs
	gm.hubs = make(map[string]*Hub)
	gm.mu.Unlock()

	for _, hub := range hubs {
		hub.close()
	}
	gm.metrics.activeGames.Set(0)
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if !validGameID(gameID) {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}

		deviceID := getOrSetDeviceID(w, r)
		if deviceID == "" {
			http.Error(w, "unable to assign device id", http.StatusInternalServerError)
			return
		}

		hub := gm.getHub(gameID)

		// Upgrade writes its own response, so carry over the cookie header.
		conn, err := upgrader.Upgrade(w, r, w.Header())
		if err != nil {
			log.Debug().Err(err).Msg("upgrade error")
			return
		}
		conn.SetReadLimit(maxMessageSize)

		client := &Client{
			conn:     conn,
			send:     make(chan any, 32),
			deviceID: deviceID,
		}

		log.Debug().Str("game_id", gameID).Str("ip", realIP(r)).Msg("GAMES: Device connected")

		select {
		case hub.register <- client:
		case <-hub.quit:
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
		case <-h.quit:
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if !h.isController(c) {
			continue
		}

		switch msg.Type {
		case "camera_opened", "camera_failed", "frame", "file_picked", "file_cancelled":
			h.bridge.resolve(msg)
		default:
			h.handleIntent(msg)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !validGameID(ps.ByName("gameid")) {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := cfg.scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}

		// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			serverError(cfg, w, r, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

var errNoPhoto = errors.New("no photo for item")

// servePhoto returns the still captured for one item of a game.
func servePhoto(cfg *Config, gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		hub, ok := gm.lookup(ps.ByName("gameid"))
		if !ok {
			http.NotFound(w, r)
			return
		}

		itemID := ps.ByName("itemid")

		img, ok := hub.game.Photo(itemID)
		if !ok {
			http.Error(w, errNoPhoto.Error(), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", img.MIME)
		w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{
			"filename": "item-" + itemID + photoExtension(img.MIME),
		}))
		w.Header().Set("Cache-Control", "private, max-age=3600")
		securityHeaders(cfg, w)

		written, err := w.Write(img.Data)
		if err != nil {
			errs <- err

			return
		}

		log.Debug().
			Str("game_id", hub.id).
			Str("item", itemID).
			Str("size", humanReadableSize(int64(written))).
			Str("ip", realIP(r)).
			Dur("elapsed", time.Since(startTime).Round(time.Microsecond)).
			Msg("SERVE: Photo")
	}
}

// ---- Static file paths ----

//go:embed assets/hunt/index.html
var indexHTML []byte

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !validGameID(ps.ByName("gameid")) {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_ = getOrSetDeviceID(w, r)

		_, _ = w.Write(indexHTML)
	}
}

// redirectNewGame handles GET /hunt by generating a new random game ID
// (with server-side collision detection) and redirecting to /hunt/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		log.Debug().Str("game_id", gameID).Str("ip", realIP(r)).Msg("GAMES: Created game")
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerHuntGame sets up routes so that:
//   - $path                         → redirects to new random game (8-char ID)
//   - $path/:gameid                 → HTML client
//   - $path/:gameid/ws              → WebSocket for that game
//   - $path/:gameid/qr              → PNG QR code for that game URL
//   - $path/:gameid/photo/:itemid   → captured photo for one item
func registerHuntGame(cfg *Config, path string, mux *httprouter.Router, gm *GameManager, errs chan<- error) {
	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", getIndexHandler(cfg))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler(cfg))

	mux.GET(cfg.prefix+path+"/:gameid/photo/:itemid", servePhoto(cfg, gm, errs))
}
