package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"sales-dashboard/internal/auth"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/ui/templates"
)

type AuthHandlers struct {
	sessions     *auth.SessionStore
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandlers(sessions *auth.SessionStore, secureCookie bool, logger *slog.Logger) *AuthHandlers {
	return &AuthHandlers{
		sessions:     sessions,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func (h *AuthHandlers) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	page := templates.Login(templates.LoginPage{Next: safeNext(r.URL.Query().Get("next"))})
	templ.Handler(page).ServeHTTP(w, r)
}

func (h *AuthHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		page := templates.Login(templates.LoginPage{Error: "Solicitud inválida", Next: "/"})
		templ.Handler(page, templ.WithStatus(http.StatusBadRequest)).ServeHTTP(w, r)
		return
	}

	username := r.PostFormValue("username")
	next := safeNext(r.PostFormValue("next"))
	if !auth.Authenticate(username, r.PostFormValue("password")) {
		h.logger.Warn("login failed", "username", username)
		page := templates.Login(templates.LoginPage{Error: "Usuario o contraseña incorrectos", Next: next})
		templ.Handler(page, templ.WithStatus(http.StatusUnauthorized)).ServeHTTP(w, r)
		return
	}

	session := h.sessions.Create(username)
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.Info("login succeeded", "username", username)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *AuthHandlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		h.sessions.Delete(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type PageHandlers struct {
	analytics *services.Analytics
}

func NewPageHandlers(analytics *services.Analytics) *PageHandlers {
	return &PageHandlers{analytics: analytics}
}

func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	var username string
	if session, ok := middleware.SessionFrom(r.Context()); ok {
		username = session.Username
	}
	page := templates.Dashboard(templates.DashboardPage{
		Username: username,
		Years:    h.analytics.Years(),
	})
	templ.Handler(page).ServeHTTP(w, r)
}
