package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// WordPressOptions configures the fake WordPress site served by NewWordPressServer.
type WordPressOptions struct {
	// Namespaces listed by the API index. Defaults to ["wp/v2"].
	Namespaces []string
	// TotalPages reported in X-WP-TotalPages for every collection. Defaults to 3.
	TotalPages int
	// FirstID and LastID bound the ids generated per page (LastID exclusive).
	// Defaults to 10000 and 10100.
	FirstID int
	LastID  int
	// Content renders an item's HTML. Defaults to DefaultContent.
	Content func(contentType string, id int) string
	// NoDiscovery drops the Link header from the home page.
	NoDiscovery bool
	// FailCollection and FailPage make one page answer 500.
	FailCollection string
	FailPage       int
	// OmitTotalPages drops the X-WP-TotalPages header.
	OmitTotalPages bool
}

// WordPressServer is an httptest server mimicking a WordPress REST API.
type WordPressServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests map[string]int
	perPage  map[string]int
}

// DefaultContent repeats a div twenty times so the extracted text exceeds 200 characters.
func DefaultContent(contentType string, _ int) string {
	return "<html><body>" +
		strings.Repeat(fmt.Sprintf("<div> %s content </div>", contentType), 20) +
		"</body></html>"
}

// NewWordPressServer starts a fake WordPress site. Items get id i+1000*page
// for i in [FirstID, LastID); comments carry no title.
func NewWordPressServer(t *testing.T, opts WordPressOptions) *WordPressServer {
	t.Helper()

	if opts.Namespaces == nil {
		opts.Namespaces = []string{"wp/v2"}
	}
	if opts.TotalPages == 0 {
		opts.TotalPages = 3
	}
	if opts.FirstID == 0 && opts.LastID == 0 {
		opts.FirstID, opts.LastID = 10000, 10100
	}
	if opts.Content == nil {
		opts.Content = DefaultContent
	}

	wp := &WordPressServer{requests: make(map[string]int), perPage: make(map[string]int)}
	wp.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wp.mu.Lock()
		wp.requests[r.URL.Path]++
		if perPage := r.URL.Query().Get("per_page"); perPage != "" {
			wp.perPage[perPage]++
		}
		wp.mu.Unlock()

		switch {
		case !strings.Contains(r.URL.Path, "/wp-json"):
			if !opts.NoDiscovery {
				w.Header().Set("Link", fmt.Sprintf(`<%s/wp-json/>; rel="https://api.w.org/"`, wp.URL))
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<html><body>home</body></html>"))
		case !strings.Contains(r.URL.Path, "/wp/v2"):
			writeJSON(w, map[string]any{"namespaces": opts.Namespaces})
		default:
			serveCollection(w, r, opts)
		}
	}))
	t.Cleanup(wp.Close)

	return wp
}

// Requests returns how many requests hit path.
func (wp *WordPressServer) Requests(path string) int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.requests[path]
}

// PerPageRequests returns how many collection requests asked for perPage items.
func (wp *WordPressServer) PerPageRequests(perPage string) int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.perPage[perPage]
}

func serveCollection(w http.ResponseWriter, r *http.Request, opts WordPressOptions) {
	var contentType, collection string
	switch {
	case strings.Contains(r.URL.Path, "/pages"):
		contentType, collection = "page", "pages"
	case strings.Contains(r.URL.Path, "/posts"):
		contentType, collection = "post", "posts"
	case strings.Contains(r.URL.Path, "/comments"):
		contentType, collection = "comment", "comments"
	default:
		http.NotFound(w, r)
		return
	}

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	if collection == opts.FailCollection && page == opts.FailPage {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]any, 0, opts.LastID-opts.FirstID)
	for i := opts.FirstID; i < opts.LastID; i++ {
		id := i + 1000*page
		item := map[string]any{
			"id":      id,
			"type":    contentType,
			"link":    fmt.Sprintf("https://www.example.com/%s", contentType),
			"content": map[string]any{"rendered": opts.Content(contentType, id)},
		}
		if contentType != "comment" {
			item["title"] = map[string]any{"rendered": contentType + " mock title"}
		}
		items = append(items, item)
	}

	if !opts.OmitTotalPages {
		w.Header().Set("X-WP-TotalPages", strconv.Itoa(opts.TotalPages))
	}
	writeJSON(w, items)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
