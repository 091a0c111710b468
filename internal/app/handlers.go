package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"git.sr.ht/~jakintosh/fbclient/pkg/client"
	"git.sr.ht/~jakintosh/fbclient/pkg/facebook"
)

type homeModel struct {
	UserID string
	Name   string
	Photo  string
	Error  string
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
	Code  int    `json:"code,omitempty"`
}

type photoResponse struct {
	URL string `json:"url"`
}

// Home renders the landing page. A request returning from the login dialog
// is redirected to itself once the code has been exchanged.
func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	fb, w, err := s.facebookApp(w, r)
	if err != nil {
		s.logAppErr("Home", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	model := homeModel{UserID: fb.UserID(ctx)}
	if model.UserID != "" && r.FormValue("code") != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if model.UserID != "" {
		data, err := fb.UserData(ctx)
		if err != nil && !errors.Is(err, facebook.ErrNotConnected) {
			s.logAppErr("Home", err)
			model.Error = "could not load profile"
		} else if name, ok := data["name"].(string); ok {
			model.Name = name
		}
		if photo, err := fb.UserPhoto(ctx, "square"); err == nil {
			model.Photo = photo
		}
		// an API failure above may have ended the session
		model.UserID = fb.UserID(ctx)
	}

	var body bytes.Buffer
	if err := s.templates.execute(&body, "home.html", model); err != nil {
		s.logAppErr("Home", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body.Bytes())
}

// Login redirects to the login dialog, or home when already connected.
// force=1 re-prompts a connected user.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	fb, w, err := s.facebookApp(w, r)
	if err != nil {
		s.logAppErr("Login", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	loginURL, connected := fb.Connect(r.Context(), r.FormValue("force") == "1")
	if connected {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, loginURL, http.StatusSeeOther)
}

// Logout ends the local session and sends a connected user through the
// platform logout.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	fb, w, err := s.facebookApp(w, r)
	if err != nil {
		s.logAppErr("Logout", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	logoutURL := fb.Disconnect(r.Context())
	fb.Client().DestroySession()
	if logoutURL == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, logoutURL, http.StatusSeeOther)
}

// Me returns the connected user's profile as JSON.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	fb, w, err := s.facebookApp(w, r)
	if err != nil {
		s.logAppErr("Me", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	data, err := fb.UserData(r.Context())
	if err != nil {
		s.writeAPIError(w, "Me", err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// Photo returns the connected user's picture URL. The type query parameter
// selects square, small, normal or large.
func (s *Server) Photo(w http.ResponseWriter, r *http.Request) {
	fb, w, err := s.facebookApp(w, r)
	if err != nil {
		s.logAppErr("Photo", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	photo, err := fb.UserPhoto(r.Context(), r.FormValue("type"))
	if err != nil {
		s.writeAPIError(w, "Photo", err)
		return
	}
	writeJSON(w, http.StatusOK, photoResponse{URL: photo})
}

func (s *Server) writeAPIError(w http.ResponseWriter, handler string, err error) {
	var apiErr *client.APIError
	var transportErr *client.TransportError
	switch {
	case errors.Is(err, facebook.ErrNotConnected):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.As(err, &apiErr):
		status := http.StatusBadGateway
		if apiErr.InvalidatesSession() {
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, errorResponse{Error: apiErr.Message, Type: apiErr.Type, Code: apiErr.Code})
	case errors.As(err, &transportErr):
		s.logAppErr(handler, err)
		status := http.StatusBadGateway
		if transportErr.Timeout() {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, errorResponse{Error: "upstream unavailable", Type: transportErr.Code})
	default:
		s.logAppErr(handler, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) logAppErr(handler string, err error) {
	s.logger.Error("request failed", "handler", handler, "error", err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
