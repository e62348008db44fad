// Package identitytest runs an in-process identity service speaking the
// same HTTP and websocket protocol as the real one.
package identitytest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"fdss/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"
)

const resetTTL = 15 * time.Minute

type account struct {
	profile domain.UserProfile
	hash    []byte
}

type reset struct {
	email     string
	expiresAt time.Time
}

type failure struct {
	status int
	body   string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]*account
	resets   map[string]reset
	outbox   map[string]string
	failures map[string]failure
	sockets  map[string][]*websocket.Conn
	requests []*http.Request

	secret   []byte
	tokenTTL time.Duration
	upgrader websocket.Upgrader
}

func NewServer() *Server {
	s := &Server{
		accounts: make(map[string]*account),
		resets:   make(map[string]reset),
		outbox:   make(map[string]string),
		failures: make(map[string]failure),
		sockets:  make(map[string][]*websocket.Conn),
		secret:   []byte(uuid.NewString()),
		tokenTTL: time.Hour,
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /auth/login", s.login)
	api.HandleFunc("POST /auth/register", s.register)
	api.HandleFunc("POST /auth/forgot-password", s.forgotPassword)
	api.HandleFunc("POST /auth/reset-password", s.resetPassword)
	api.HandleFunc("PUT /auth/profile", s.updateProfile)
	api.HandleFunc("GET /events", s.events)

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", s.record(api)))

	s.Server = httptest.NewServer(root)
	return s
}

// APIURL is the base URL a client should be configured with.
func (s *Server) APIURL() string { return s.URL + "/api" }

// EventsURL is the websocket endpoint for identity events.
func (s *Server) EventsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/api/events"
}

func (s *Server) AddUser(fullName, email, password string, role domain.Role) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[strings.ToLower(email)] = &account{
		profile: domain.UserProfile{FullName: fullName, Email: email, Role: role},
		hash:    hash,
	}
}

func (s *Server) User(email string) (domain.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return domain.UserProfile{}, false
	}
	return acc.profile, true
}

// ResetTokenFor returns the last reset token "emailed" to email.
func (s *Server) ResetTokenFor(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outbox[strings.ToLower(email)]
}

// Fail makes the next request to path answer with status and raw body.
func (s *Server) Fail(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = failure{status: status, body: body}
}

// Requests returns the requests seen so far, oldest first.
func (s *Server) Requests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Request(nil), s.requests...)
}

// IssueToken signs a token for email with the given lifetime.
func (s *Server) IssueToken(email string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub": strings.ToLower(email),
		"exp": time.Now().Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

// Revoke pushes a session_revoked event to every socket of email.
func (s *Server) Revoke(email string) int {
	return s.push(email, domain.IdentityEvent{Type: domain.IdentityEventSessionRevoked})
}

// PushProfile pushes a profile_updated event carrying the stored profile.
func (s *Server) PushProfile(email string) int {
	profile, ok := s.User(email)
	if !ok {
		return 0
	}
	payload, _ := json.Marshal(profile)
	return s.push(email, domain.IdentityEvent{Type: domain.IdentityEventProfileUpdated, Payload: payload})
}

// Close drops open sockets before shutting the server down.
func (s *Server) Close() {
	s.mu.Lock()
	for _, conns := range s.sockets {
		for _, c := range conns {
			c.Close()
		}
	}
	s.mu.Unlock()
	s.Server.Close()
}

// Connected reports how many sockets email holds open.
func (s *Server) Connected(email string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sockets[strings.ToLower(email)])
}

func (s *Server) push(email string, ev domain.IdentityEvent) int {
	s.mu.Lock()
	conns := append([]*websocket.Conn(nil), s.sockets[strings.ToLower(email)]...)
	s.mu.Unlock()

	sent := 0
	for _, c := range conns {
		if err := c.WriteJSON(ev); err == nil {
			sent++
		}
	}
	return sent
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Clone(r.Context()))
		f, failing := s.failures[r.URL.Path]
		delete(s.failures, r.URL.Path)
		s.mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req domain.Credentials
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(req.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": s.IssueToken(req.Email, s.tokenTTL),
		"token_type":   "bearer",
		"user":         acc.profile,
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string      `json:"full_name"`
		Email    string      `json:"email"`
		Password string      `json:"password"`
		Role     domain.Role `json:"role"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	_, exists := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}

	if req.Role == "" {
		req.Role = domain.RoleMember
	}
	s.AddUser(req.FullName, req.Email, req.Password, req.Role)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": s.IssueToken(req.Email, s.tokenTTL),
		"token_type":   "bearer",
	})
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetRequest
	if !decode(w, r, &req) {
		return
	}

	email := strings.ToLower(req.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[email]; !ok {
		writeJSON(w, http.StatusOK, map[string]string{"message": "If the email exists, a reset link has been sent."})
		return
	}

	token := uuid.NewString()
	s.resets[token] = reset{email: email, expiresAt: time.Now().Add(resetTTL)}
	s.outbox[email] = token

	writeJSON(w, http.StatusOK, map[string]string{"message": "A reset token has been sent to your email."})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetConfirmation
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.resets[req.Token]
	delete(s.resets, req.Token)
	if !ok || time.Now().After(entry.expiresAt) {
		writeDetail(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}

	acc, ok := s.accounts[entry.email]
	if !ok {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.MinCost)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}
	acc.hash = hash

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset successful"})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	email, err := s.authenticate(r)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var req domain.ProfileUpdate
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[email]
	if !ok {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}

	newEmail := strings.ToLower(req.Email)
	if other, taken := s.accounts[newEmail]; taken && other != acc {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}

	delete(s.accounts, email)
	acc.profile.FullName = req.FullName
	acc.profile.Email = req.Email
	s.accounts[newEmail] = acc

	writeJSON(w, http.StatusOK, acc.profile)
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	email, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.sockets[email] = append(s.sockets[email], conn)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		conns := s.sockets[email]
		for i, c := range conns {
			if c == conn {
				s.sockets[email] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) authenticate(r *http.Request) (string, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return "", errors.New("missing bearer token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token without subject")
	}
	return sub, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return false
	}
	return true
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
