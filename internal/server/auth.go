package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/TobiSchelling/SocialAgent/internal/content"
	"github.com/TobiSchelling/SocialAgent/internal/database"
	"github.com/TobiSchelling/SocialAgent/internal/oauth"
)

func (s *Server) requireOAuth(w http.ResponseWriter) bool {
	if s.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "OAuth is not configured")
		return false
	}
	return true
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, oauth.ErrUnsupportedPlatform):
		return http.StatusNotFound
	case errors.Is(err, oauth.ErrInvalidState), errors.Is(err, oauth.ErrExpiredState),
		errors.Is(err, oauth.ErrMissingCode):
		return http.StatusBadRequest
	case errors.Is(err, oauth.ErrClientNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// handleLogin returns the authorization URL. With ?redirect=1 the browser is
// sent there directly.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.requireOAuth(w) {
		return
	}
	platform := content.ParsePlatform(mux.Vars(r)["platform"])
	req, err := s.auth.AuthURL(platform, s.userID)
	if err != nil {
		writeError(w, authStatus(err), err.Error())
		return
	}
	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, req.URL, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if !s.requireOAuth(w) {
		return
	}
	platform := content.ParsePlatform(mux.Vars(r)["platform"])
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s authorization denied: %s", platform.DisplayName(), e))
		return
	}
	acct, err := s.auth.Callback(r.Context(), platform, q.Get("state"), q.Get("code"))
	if err != nil {
		log.Printf("OAuth callback for %s failed: %v", platform, err)
		writeError(w, authStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    platform.DisplayName() + " authentication successful",
		"account_id": acct.ID,
		"platform":   acct.Platform,
	})
}

type accountView struct {
	ID          int64            `json:"id"`
	Platform    content.Platform `json:"platform"`
	ConnectedAt string           `json:"connected_at"`
	Status      string           `json:"status"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	if !s.requireOAuth(w) {
		return
	}
	accounts, err := s.auth.Accounts(s.userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView{ID: a.ID, Platform: a.Platform, ConnectedAt: a.CreatedAt, Status: "connected"})
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": views})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if !s.requireOAuth(w) {
		return
	}
	acct, err := s.auth.Disconnect(s.userID, pathID(r))
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Account not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("%s account disconnected successfully", acct.Platform.DisplayName()),
	})
}
