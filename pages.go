package pages

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/researchspace/semantic-pages/markup"
)

// pageExt is the extension of page templates. It is used when matching files in the file system.
const pageExt = ".html"

// wsUpgrader is a Gorilla WebSocket instance, used to respond HTTP requests with WebSocket.
var wsUpgrader = websocket.Upgrader{}

// Handler serves page templates. A request for /foo renders foo.html, a request for /foo/
// renders foo/index.html. Pages are parsed with Parser and rendered into HTML; every other file
// is served as is.
type Handler struct {
	// FileSystem to serve page templates and other web assets from.
	FileSystem fs.FS

	// Parser resolves the components of a page.
	Parser *markup.Parser

	// Live enables websocket connections: the page is parsed and rendered again on every
	// incoming message, keeping the mounted component instances between renders.
	Live bool

	// OnError is a callback that is called when an error occurs while serving a page.
	OnError func(*http.Request, error)

	// OnErrorPage is the path of a page template in FileSystem that is rendered when a page
	// fails. The template sees the error under "error" and the request path under "path".
	// If not set, a standard "Internal Server Error" will be sent back to the client.
	OnErrorPage string

	// Logger configures logging for internal events.
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *Metrics

	// init is used to initialize the handler only once.
	init sync.Once

	// logger is a private logger instance that is used to log internal events.
	logger *slog.Logger

	// errPage renders OnErrorPage.
	errPage *errorPage
}

// ServeHTTP implements the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.init.Do(func() {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		if h.Logger != nil {
			h.logger = h.Logger
		}

		if h.OnErrorPage != "" {
			ep, err := newErrorPage(h.FileSystem, h.OnErrorPage)
			if err != nil {
				h.logger.Error("Load error page", "error", err)
			}
			h.errPage = ep
		}
	})

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	defer func() { h.Metrics.observe(rec.status, time.Since(start)) }()

	if err := h.handleRequest(rec, r); err != nil {
		h.logger.Error("Serve HTTP request", "url", r.URL.Redacted(), "error", err)

		if h.OnError != nil {
			h.OnError(r, err)
		}

		if !rec.wroteHeader {
			h.serveError(rec, r, err)
		}
	}
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) error {
	urlPath := cleanPath(r.URL.Path)

	fsPath, err := h.matchFS(urlPath)
	if err != nil {
		return err
	}

	if fsPath == "" {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return nil
	}

	if strings.HasSuffix(fsPath, pageExt) {
		return h.servePage(w, r, fsPath)
	}

	return h.serveFile(w, r, fsPath)
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request, fsPath string) error {
	tree := markup.NewTree()
	tree.Logger = h.logger
	defer func() {
		if err := tree.Close(); err != nil {
			h.logger.Error("Unmount page", "page", fsPath, "error", err)
		}
	}()

	if h.Live && websocket.IsWebSocketUpgrade(r) {
		return h.serveLive(w, r, fsPath, tree)
	}

	var buf strings.Builder
	if err := h.renderPage(r, fsPath, tree, &buf); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := io.WriteString(w, buf.String())
	return err
}

// serveLive renders the page on each incoming websocket message until the connection is closed.
func (h *Handler) serveLive(w http.ResponseWriter, r *http.Request, fsPath string, tree *markup.Tree) error {
	ws, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	rc := make(chan struct{}, 1) // renderer event channel
	done := make(chan error, 1)  // channel to communicate the completion of the rendering loop

	rc <- struct{}{} // initial render

	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					err = nil
				} else {
					err = fmt.Errorf("read websocket message: %w", err)
				}
				done <- err // stop rendering loop
				return
			}

			// Trigger render on WebSocket message receipt
			select {
			case rc <- struct{}{}:
			default: // If rc is already pending, don't block
			}
		}
	}()

	for {
		select {
		case <-rc:
			mw, err := ws.NextWriter(websocket.TextMessage)
			if err != nil {
				return fmt.Errorf("get websocket writer: %w", err)
			}
			if err := h.renderPage(r, fsPath, tree, mw); err != nil {
				_ = mw.Close()
				return err
			}
			if err := mw.Close(); err != nil {
				return fmt.Errorf("close websocket writer: %w", err)
			}
		case err := <-done:
			return err
		case <-r.Context().Done():
			return nil
		}
	}
}

// renderPage reads, parses and renders the page. The page is read on every call so that live
// connections see changes of the file.
func (h *Handler) renderPage(r *http.Request, fsPath string, tree *markup.Tree, w io.Writer) error {
	src, err := fs.ReadFile(h.FileSystem, fsPath)
	if err != nil {
		return fmt.Errorf("read page %s: %w", fsPath, err)
	}

	elements, err := h.Parser.ParseHTML(r.Context(), string(src))
	if err != nil {
		return fmt.Errorf("parse page %s: %w", fsPath, err)
	}

	doc, err := tree.Render(elements)
	if doc == nil {
		return fmt.Errorf("render page %s: %w", fsPath, err)
	}
	if err != nil {
		// Lifecycle errors of components without an error boundary do not fail the page.
		h.logger.Warn("Render page", "page", fsPath, "error", err)
	}

	if err := markup.RenderHTML(w, doc); err != nil {
		return fmt.Errorf("write page %s: %w", fsPath, err)
	}
	return nil
}

func (h *Handler) serveError(w http.ResponseWriter, r *http.Request, err error) {
	if h.errPage == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf strings.Builder
	if rerr := h.errPage.render(&buf, r, err); rerr != nil {
		h.logger.Error("Render error page", "error", rerr)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w, buf.String())
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, fsPath string) error {
	r.URL.Path = "/" + fsPath
	r.URL.RawPath = ""
	http.FileServerFS(h.FileSystem).ServeHTTP(w, r)
	return nil
}

// match examples:
// - / -> index.html
// - /foo -> foo.html
// - /foo/ -> foo/index.html
// - /foo/bar -> foo/bar.html
// - /foo/file.txt -> foo/file.txt
//
// Hidden files and directories are never matched.
func (h *Handler) matchFS(urlPath string) (string, error) {
	name := strings.TrimPrefix(urlPath, "/")
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", nil
		}
	}

	var candidates []string
	switch {
	case name == "" || strings.HasSuffix(name, "/"):
		candidates = []string{path.Join(name, "index"+pageExt)}
	case path.Ext(name) == pageExt:
		// Page templates are only served through their clean URL.
		return "", nil
	default:
		candidates = []string{name + pageExt, name}
	}

	for _, c := range candidates {
		fi, err := fs.Stat(h.FileSystem, c)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", c, err)
		}
		if fi.IsDir() {
			continue
		}
		return c, nil
	}
	return "", nil
}

// cleanPath returns the canonical path for p, eliminating . and .. elements.
//
// Copied from net/http/server.go
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	// path.Clean removes trailing slash except for root;
	// put the trailing slash back if necessary.
	if p[len(p)-1] == '/' && np != "/" {
		// Fast path for common case of p being the string we want:
		if len(p) == len(np)+1 && strings.HasPrefix(p, np) {
			np = p
		} else {
			np += "/"
		}
	}
	return np
}

// statusRecorder remembers the status code written to the response.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is used by the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.wroteHeader = true
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}
