// Package ui serves the interactive chat page. Each browser gets its own
// conversation, seeded with a greeting and kept apart from the JSON relay.
package ui

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"sync"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/comigor/deepassist-go/internal/history"
	"github.com/comigor/deepassist-go/internal/logger"
	"github.com/comigor/deepassist-go/internal/middleware"
	"github.com/comigor/deepassist-go/internal/relay"
)

//go:embed templates/*.html
var templateFS embed.FS

// SessionCookie holds the UI session identifier.
const SessionCookie = "deepassist_session"

// outcome is what the page shows about the most recent turn.
type outcome struct {
	Reply string
	Error string
}

// UI serves the interactive chat page for browser sessions.
type UI struct {
	relay  *relay.Relay
	store  *history.Store
	model  string
	tpl    *template.Template
	md     goldmark.Markdown
	policy *bluemonday.Policy

	mu     sync.Mutex
	latest map[string]outcome
}

// New builds the UI. store should be seeded with the greeting.
func New(r *relay.Relay, store *history.Store, model string) (*UI, error) {
	tpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	md := goldmark.New(
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		goldmark.WithExtensions(
			highlighting.NewHighlighting(
				highlighting.WithStyle("dracula"),
				highlighting.WithFormatOptions(chromahtml.WithLineNumbers(false)),
			),
		),
	)

	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("code", "pre", "span")
	p.AllowAttrs("style").OnElements("pre", "span")

	return &UI{
		relay:  r,
		store:  store,
		model:  model,
		tpl:    tpl,
		md:     md,
		policy: p,
		latest: make(map[string]outcome),
	}, nil
}

// MsgView is one rendered transcript entry.
type MsgView struct {
	Role string
	HTML template.HTML
}

func (u *UI) mdHTML(src string) template.HTML {
	var buf bytes.Buffer
	if err := u.md.Convert([]byte(src), &buf); err != nil {
		logger.L.Warn("markdown render failed", "error", err)
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(u.policy.SanitizeBytes(buf.Bytes()))
}

func (u *UI) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// Home renders the transcript, the latest-solution panel and the input.
func (u *UI) Home(w http.ResponseWriter, r *http.Request) {
	sid := u.sessionID(w, r)

	msgs, ok := u.store.Get(sid)
	if !ok {
		_ = u.store.Do(sid, func(h *history.History) error {
			msgs = h.Snapshot()
			return nil
		})
	}

	views := make([]MsgView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, MsgView{Role: string(m.Role), HTML: u.mdHTML(m.Content)})
	}

	u.mu.Lock()
	last := u.latest[sid]
	u.mu.Unlock()

	var panel template.HTML
	if last.Reply != "" {
		panel = u.mdHTML(last.Reply)
	}

	u.render(w, "chat.html", map[string]any{
		"Model":    u.model,
		"Models":   []string{u.model},
		"Messages": views,
		"Panel":    panel,
		"Error":    last.Error,
	})
}

// ChatPost runs one relay turn for the browser's session, then redirects home.
func (u *UI) ChatPost(w http.ResponseWriter, r *http.Request) {
	sid := u.sessionID(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if m := r.PostForm.Get("model"); m != "" && m != u.model {
		http.Error(w, "unknown model", http.StatusBadRequest)
		return
	}

	msg := r.PostForm.Get("message")
	if strings.TrimSpace(msg) != "" {
		reply, err := u.relay.Handle(r.Context(), u.store, sid, &msg)
		u.mu.Lock()
		if err != nil {
			u.latest[sid] = outcome{Error: err.Error()}
		} else {
			u.latest[sid] = outcome{Reply: reply}
		}
		u.mu.Unlock()
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Dismiss hides the latest-solution panel.
func (u *UI) Dismiss(w http.ResponseWriter, r *http.Request) {
	sid := u.sessionID(w, r)
	u.mu.Lock()
	delete(u.latest, sid)
	u.mu.Unlock()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (u *UI) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := u.tpl.ExecuteTemplate(&buf, name, data); err != nil {
		logger.L.Error("template execute", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// RegisterRoutes mounts the UI routes.
func (u *UI) RegisterRoutes(r chi.Router) {
	r.Get("/", u.Home)
	r.Post("/ui/chat", u.ChatPost)
	r.Post("/ui/dismiss", u.Dismiss)
}

// NewRouter builds the UI server's router.
func NewRouter(u *UI) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(chiMiddleware.Recoverer)
	u.RegisterRoutes(r)
	return r
}
