// Package ws is the WebSocket transport of the relay: an ordered, reliable,
// bidirectional event channel per connection, plus the HTTP auth endpoints
// that hand out the tokens a connection must present at upgrade time.
package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/services"

	relayerrors "chat-relay/errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Server struct {
	log         *slog.Logger
	authService services.IAuthService
	issuer      *auth.TokenIssuer
	coordinator *runtime.Coordinator
	monitor     *observability.MemoryMonitor
	sendBuffer  int
	upgrader    websocket.Upgrader
}

func NewServer(
	log *slog.Logger,
	authService services.IAuthService,
	issuer *auth.TokenIssuer,
	coordinator *runtime.Coordinator,
	monitor *observability.MemoryMonitor,
	sendBuffer int,
) *Server {
	return &Server{
		log:         log,
		authService: authService,
		issuer:      issuer,
		coordinator: coordinator,
		monitor:     monitor,
		sendBuffer:  sendBuffer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes wires every HTTP endpoint of the relay.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /ws", s.handleChat)
	mux.HandleFunc("GET /ws/memory", s.handleMemory)
	return mux
}

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds credentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	token, err := s.authService.Register(creds.Username, creds.Password)
	switch {
	case errors.Is(err, relayerrors.ErrIdentityExists):
		http.Error(w, "username already taken", http.StatusConflict)
		return
	case errors.Is(err, relayerrors.ErrInvalidPassword):
		http.Error(w, "invalid username or password format", http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}

	s.log.Info("identity registered", "user", creds.Username)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(tokenResponse{Token: string(token)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	token, err := s.authService.Login(creds.Username, creds.Password)
	if err != nil {
		s.log.Info("login refused", "user", creds.Username)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	s.log.Info("login succeeded", "user", creds.Username)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tokenResponse{Token: string(token)})
}

// handleChat upgrades an authenticated connection and drives it until it
// drops. A request without a valid token is refused before the upgrade: no
// presence entry is created and no events are ever accepted from it.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	username, err := s.issuer.Validate(bearerToken(r))
	if err != nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := newClient(domain.ConnID(uuid.NewString()), conn, s.sendBuffer, s.log)
	if err := s.coordinator.Connect(c.id, username, c); err != nil {
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump(s.coordinator.Dispatch)
	s.coordinator.Disconnect(c.id)
}

// handleMemory serves the monitoring audience. No chat semantics: the
// connection only ever receives memory_update events.
func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := newClient(domain.ConnID(uuid.NewString()), conn, s.sendBuffer, s.log)
	s.monitor.Subscribe(c.id, c)

	go c.writePump()
	// Drain until the subscriber goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.monitor.Unsubscribe(c.id)
	conn.Close()
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}
