package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"booklibrary/internal/app"
	"booklibrary/internal/util"
	"booklibrary/pkg/domain"
)

const maxBodyBytes = 1 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
}

// Server exposes the seller, token, and book endpoints.
type Server struct {
	app *app.App
	mux *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app: cfg.App,
		mux: http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("booklibrary", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// sellers
	s.mux.HandleFunc("POST /api/v1/seller/{$}", s.handleCreateSeller)
	s.mux.Handle("GET /api/v1/seller/{$}", s.authenticated(s.handleListSellers))
	s.mux.Handle("GET /api/v1/seller/{id}", s.authenticated(s.handleGetSeller))
	s.mux.Handle("PUT /api/v1/seller/{id}", s.authenticated(s.handleUpdateSeller))
	s.mux.Handle("DELETE /api/v1/seller/{id}", s.authenticated(s.handleDeleteSeller))

	// tokens
	s.mux.HandleFunc("POST /api/v1/token/{$}", s.handleLogin)
	s.mux.HandleFunc("POST /api/v1/token/refresh", s.handleRefresh)
	s.mux.Handle("POST /api/v1/token/logout", s.authenticated(s.handleLogout))

	// books
	s.mux.Handle("POST /api/v1/books/{$}", s.authenticated(s.handleCreateBook))
	s.mux.HandleFunc("GET /api/v1/books/{$}", s.handleListBooks)
	s.mux.HandleFunc("GET /api/v1/books/{id}", s.handleGetBook)
	s.mux.Handle("PUT /api/v1/books/{id}", s.authenticated(s.handleUpdateBook))
	s.mux.Handle("DELETE /api/v1/books/{id}", s.authenticated(s.handleDeleteBook))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.Seller)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		seller, err := s.app.SellerFromAccessToken(token)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		next(w, r, seller)
	})
}

// seller handlers
func (s *Server) handleCreateSeller(w http.ResponseWriter, r *http.Request) {
	var req createSellerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	seller, err := s.app.RegisterSeller(app.NewSeller{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sellerToResponse(seller))
}

func (s *Server) handleListSellers(w http.ResponseWriter, r *http.Request, _ domain.Seller) {
	sellers, err := s.app.ListSellers()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sellersToResponse(sellers))
}

func (s *Server) handleGetSeller(w http.ResponseWriter, r *http.Request, _ domain.Seller) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	seller, err := s.app.GetSellerWithBooks(id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sellerWithBooksToResponse(seller))
}

func (s *Server) handleUpdateSeller(w http.ResponseWriter, r *http.Request, _ domain.Seller) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateSellerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	seller, err := s.app.UpdateSeller(id, app.SellerUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sellerToResponse(seller))
}

func (s *Server) handleDeleteSeller(w http.ResponseWriter, r *http.Request, _ domain.Seller) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.app.DeleteSeller(id); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// token handlers
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pair, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pair)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	pair, err := s.app.Refresh(token)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ domain.Seller) {
	accessToken, _ := bearerToken(r)
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	// Body is optional: logout without it only revokes the access token.
	_ = json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req)
	if err := s.app.Logout(accessToken, req.RefreshToken); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// book handlers
func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request, seller domain.Seller) {
	var req bookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	book, err := s.app.CreateBook(seller, req.toInput())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.app.ListBooks()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if books == nil {
		books = []domain.Book{}
	}
	writeJSON(w, http.StatusOK, booksResponse{Books: books})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	book, err := s.app.GetBook(id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request, seller domain.Seller) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req bookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	book, err := s.app.UpdateBook(seller, id, req.toInput())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request, seller domain.Seller) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.app.DeleteBook(seller, id); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeAppError translates application errors into HTTP responses. Store and
// other unexpected errors are logged and surfaced as an opaque 500.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *app.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": vErr.Message,
			"field": vErr.Field,
		})
	case errors.Is(err, app.ErrEmailAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrUnauthorized), errors.Is(err, app.ErrRefreshTokenRequired):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, app.ErrSellerNotFound):
		writeError(w, http.StatusNotFound, app.ErrSellerNotFound.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "err", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		writeError(w, http.StatusNotFound, "not found")
		return 0, false
	}
	return uint(id), true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
