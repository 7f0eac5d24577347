package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/quantum-chess/signaling-server/internal/signaling"
)

// Name and Version identify the server on the root info endpoint.
const (
	Name    = "Quantum Chess Signaling Server"
	Version = "1.0.0"
)

const defaultMaxBranches = 2

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024, // 64 KB
	WriteBufferSize: 64 * 1024, // 64 KB

	// We need to check the origin, but for development, we can allow all.
	// In production, you'd check r.Header.Get("Origin") against your frontend's domain
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all connections for now
	},
}

// Server exposes the pairing API and the websocket surface over a
// registry. It is the only boundary through which rooms are mutated.
type Server struct {
	registry *signaling.Registry
	router   *mux.Router
}

// New creates the HTTP boundary around the given registry.
func New(registry *signaling.Registry) *Server {
	s := &Server{
		registry: registry,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// OPTIONS is routed so browser preflights reach the CORS
	// middleware instead of falling through to a 404.
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rooms", s.handleCreateRoom).Methods("POST", "OPTIONS")
	api.HandleFunc("/rooms/join", s.handleJoinRoom).Methods("POST", "OPTIONS")
	api.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")

	s.router.HandleFunc("/ws/{roomId}", s.handleSocket)
	s.router.HandleFunc("/", s.handleInfo).Methods("GET", "OPTIONS")

	s.router.Use(corsMiddleware)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// corsMiddleware allows browser frontends on any origin to call the
// pairing API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Pairing API

type createRoomRequest struct {
	Seed int64 `json:"seed"`
	// Pointer so an absent field defaults to 2 instead of clamping 0 up to 1.
	MaxBranches *int `json:"maxBranches"`
}

type createRoomResponse struct {
	RoomID      string         `json:"roomId"`
	Role        signaling.Role `json:"role"`
	Color       string         `json:"color"`
	MaxBranches int            `json:"maxBranches"`
}

type joinRoomRequest struct {
	RoomID string `json:"roomId"`
	Seed   int64  `json:"seed"`
}

type joinRoomResponse struct {
	RoomID       string         `json:"roomId"`
	Role         signaling.Role `json:"role"`
	Color        string         `json:"color"`
	CombinedSeed int64          `json:"combinedSeed"`
	MaxBranches  int            `json:"maxBranches"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	branches := defaultMaxBranches
	if req.MaxBranches != nil {
		branches = *req.MaxBranches
	}

	room := s.registry.CreateRoom(req.Seed, branches)

	respondJSON(w, http.StatusCreated, createRoomResponse{
		RoomID:      room.ID,
		Role:        signaling.RoleHost,
		Color:       signaling.RoleHost.Color(),
		MaxBranches: room.MaxBranches,
	})
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RoomID == "" {
		respondError(w, http.StatusBadRequest, "roomId is required")
		return
	}

	room, combined, err := s.registry.Join(req.RoomID, req.Seed)
	switch {
	case err == nil:
	case errors.Is(err, signaling.ErrRoomNotFound):
		respondError(w, http.StatusNotFound, "Room not found")
		return
	case errors.Is(err, signaling.ErrRoomFull):
		respondError(w, http.StatusConflict, "Room is full")
		return
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, joinRoomResponse{
		RoomID:       room.ID,
		Role:         signaling.RoleGuest,
		Color:        signaling.RoleGuest.Color(),
		CombinedSeed: combined,
		MaxBranches:  room.MaxBranches,
	})
}

// Websocket surface

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Failed to upgrade connection:", err)
		return
	}

	// Rejections for unknown or full rooms happen after the upgrade so
	// the client receives a distinct close code instead of a failed
	// handshake.
	signaling.Attach(s.registry, conn, roomID)
}

// Read-only surface

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"rooms":  s.registry.Count(),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":    Name,
		"version": Version,
		"status":  "running",
		"endpoints": map[string]string{
			"health":      "/api/health",
			"create_room": "POST /api/rooms",
			"join_room":   "POST /api/rooms/join",
			"websocket":   "/ws/{roomId}",
		},
		"activeRooms": s.registry.Count(),
	})
}
