package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"sales-dashboard/internal/auth"
	"sales-dashboard/internal/middleware"
)

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                "/",
		"/":               "/",
		"/admin/stats":    "/admin/stats",
		"//evil.example":  "/",
		"https://evil.io": "/",
		"/\\evil.example": "/",
	}
	for in, want := range tests {
		if got := safeNext(in); got != want {
			t.Errorf("safeNext(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAuthHandlers_LoginPage(t *testing.T) {
	handlers := NewAuthHandlers(auth.NewSessionStore(time.Hour), false, testLogger())

	w := httptest.NewRecorder()
	handlers.HandleLoginPage(w, httptest.NewRequest(http.MethodGet, "/login?next=/admin/stats", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), `value="/admin/stats"`) {
		t.Error("login page should carry the next target")
	}
}

func TestAuthHandlers_Login(t *testing.T) {
	store := auth.NewSessionStore(time.Hour)
	handlers := NewAuthHandlers(store, true, testLogger())

	w := httptest.NewRecorder()
	handlers.HandleLogin(w, postForm("/login", url.Values{
		"username": {"LCG"},
		"password": {"BC_dashboard"},
		"next":     {"/admin/stats"},
	}))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected status %d, got %d", http.StatusSeeOther, w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/admin/stats" {
		t.Errorf("expected redirect to /admin/stats, got %q", loc)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != auth.CookieName {
		t.Fatalf("expected session cookie, got %v", cookies)
	}
	if !cookies[0].HttpOnly || !cookies[0].Secure {
		t.Error("session cookie should be HttpOnly and Secure")
	}
	if _, ok := store.Get(cookies[0].Value); !ok {
		t.Error("session should be stored")
	}
}

func TestAuthHandlers_LoginRejected(t *testing.T) {
	store := auth.NewSessionStore(time.Hour)
	handlers := NewAuthHandlers(store, false, testLogger())

	w := httptest.NewRecorder()
	handlers.HandleLogin(w, postForm("/login", url.Values{"username": {"admin"}, "password": {"wrong"}}))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
	if !strings.Contains(w.Body.String(), "incorrectos") {
		t.Error("login page should show the error")
	}
	if store.Len() != 0 {
		t.Error("no session should be created")
	}
}

func TestAuthHandlers_Logout(t *testing.T) {
	store := auth.NewSessionStore(time.Hour)
	handlers := NewAuthHandlers(store, false, testLogger())
	session := store.Create("admin")

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: session.ID})
	w := httptest.NewRecorder()
	handlers.HandleLogout(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("expected status %d, got %d", http.StatusSeeOther, w.Code)
	}
	if _, ok := store.Get(session.ID); ok {
		t.Error("session should be deleted")
	}
}

func TestPageHandlers_Dashboard(t *testing.T) {
	store := auth.NewSessionStore(time.Hour)
	session := store.Create("user")
	page := middleware.RequireSession(store, "/login", testLogger())(http.HandlerFunc(NewPageHandlers(createTestAnalytics()).HandleDashboard))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: session.ID})
	w := httptest.NewRecorder()
	page.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"user", `<option value="2015">2015</option>`, "/sse/refresh"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard should contain %q", want)
		}
	}
}
