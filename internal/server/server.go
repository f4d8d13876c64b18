package server

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	DefaultPort     = 8000
	DefaultUsername = "testuser"
	DefaultPassword = "testpassword"
	DefaultRealm    = "WebDAV Test Realm"
)

type Config struct {
	Port     int
	Username string
	Password string
	Realm    string
}

// Handler is the reference system under test: a HEAD-only endpoint behind
// Basic auth that answers 200 for anything under /evidence/ and 404 for the
// rest, logging one W3C-style line per request.
type Handler struct {
	cfg  Config
	logw io.Writer
	now  func() time.Time
}

func NewHandler(cfg Config, logw io.Writer) *Handler {
	if cfg.Username == "" {
		cfg.Username = DefaultUsername
	}
	if cfg.Password == "" {
		cfg.Password = DefaultPassword
	}
	if cfg.Realm == "" {
		cfg.Realm = DefaultRealm
	}
	return &Handler{cfg: cfg, logw: logw, now: time.Now}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		h.logRequest(r, http.StatusMethodNotAllowed, "-")
		return
	}

	username, ok := h.authenticate(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", h.cfg.Realm))
		w.WriteHeader(http.StatusUnauthorized)
		h.logRequest(r, http.StatusUnauthorized, username)
		return
	}

	status := http.StatusNotFound
	if strings.HasPrefix(r.URL.Path, "/evidence/") {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	h.logRequest(r, status, username)
}

// authenticate reports the username to log alongside the auth verdict:
// "-" when no Authorization header was sent, "invalid_user" for a malformed
// header or wrong credentials.
func (h *Handler) authenticate(r *http.Request) (string, bool) {
	if r.Header.Get("Authorization") == "" {
		return "-", false
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return "invalid_user", false
	}
	if user == h.cfg.Username && pass == h.cfg.Password {
		return user, true
	}
	return "invalid_user", false
}

// logRequest writes one W3C-style line:
// date time c-ip cs-method cs-uri-stem sc-status cs(User-Agent) cs-username
func (h *Handler) logRequest(r *http.Request, status int, username string) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ua := r.Header.Get("User-Agent")
	if ua == "" {
		ua = "-"
	}
	fmt.Fprintf(h.logw, "%s %s %s %s %d %q %s\n",
		h.now().Format("2006-01-02 15:04:05"), host, r.Method, r.URL.Path, status, ua, username)
}

// Run serves until the listener fails. A bind error (port already taken)
// comes back to the caller, which exits nonzero.
func Run(cfg Config) error {
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	h := NewHandler(cfg, os.Stderr)

	fmt.Printf("Serving at port %d\n", cfg.Port)
	fmt.Printf("Credentials: %s/%s\n", h.cfg.Username, h.cfg.Password)
	fmt.Println("\n# W3C Log Format:")
	fmt.Println("# date time c-ip cs-method cs-uri-stem sc-status cs(User-Agent) cs-username")
	fmt.Println("# -------------------------------------------------------------------------")

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: h,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
