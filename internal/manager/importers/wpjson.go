package importers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/internal/manager/models"
	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/rs/zerolog"
	"github.com/tomnomnom/linkheader"
	"golang.org/x/time/rate"
)

const (
	// HTTP client timeout in seconds.
	defaultWPHTTPTimeout = 30
	// Default items per page, the maximum WordPress allows.
	defaultPerPage = 100

	// APIRootRel is the link relation WordPress uses to advertise its REST API.
	APIRootRel = "https://api.w.org/"
	// CoreNamespace is the REST namespace serving pages, posts and comments.
	CoreNamespace = "wp/v2"
	// TotalPagesHeader carries the page count of a collection.
	TotalPagesHeader = "X-WP-TotalPages"
)

var (
	ErrDiscovery            = errors.New("WordPress REST API discovery failed")
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrInvalidTotalPages    = errors.New("missing or invalid " + TotalPagesHeader + " header")
	ErrInvalidAPIRoot       = errors.New("invalid API root")
)

// Collections are fetched in this order.
var collections = []string{"pages", "posts", "comments"}

var _ interfaces.ContentSource = (*WPJSONImporter)(nil)

// WPJSONImporter discovers a WordPress REST API and streams its public content.
type WPJSONImporter struct {
	client  *http.Client
	perPage int
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewWPJSONImporter creates a new WordPress JSON importer.
func NewWPJSONImporter() *WPJSONImporter {
	logger := util.NewLogger(zerolog.InfoLevel)
	return &WPJSONImporter{
		client: &http.Client{
			Timeout: defaultWPHTTPTimeout * time.Second,
		},
		perPage: defaultPerPage,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  logger,
	}
}

// FindAPIRoot requests siteURL and returns the API root from its Link headers.
func (w *WPJSONImporter) FindAPIRoot(ctx context.Context, siteURL string) (string, error) {
	base, err := url.Parse(siteURL)
	if err != nil {
		w.logger.Error().Err(err).Str("site_url", siteURL).Msg("invalid site URL")
		return "", fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	resp, err := w.get(ctx, siteURL)
	if err != nil {
		w.logger.Error().Err(err).Str("site_url", siteURL).Msg("site unreachable")
		return "", fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		w.logger.Error().Int("status_code", resp.StatusCode).Str("site_url", siteURL).Msg("unexpected status code")
		return "", fmt.Errorf("%w: %w: %d", ErrDiscovery, ErrUnexpectedStatusCode, resp.StatusCode)
	}

	links := linkheader.ParseMultiple(resp.Header.Values("Link")).FilterByRel(APIRootRel)
	if len(links) == 0 {
		w.logger.Error().Str("site_url", siteURL).Msg("no REST API link relation, not a WordPress site or discovery disabled")
		return "", fmt.Errorf("%w: no %q link relation on %s", ErrDiscovery, APIRootRel, siteURL)
	}

	ref, err := url.Parse(links[0].URL)
	if err != nil {
		w.logger.Error().Err(err).Str("link", links[0].URL).Msg("invalid API root link")
		return "", fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	apiRoot := base.ResolveReference(ref).String()
	w.logger.Debug().Str("site_url", siteURL).Str("api_root", apiRoot).Msg("Discovered API root")
	return apiRoot, nil
}

// SupportsV2 reports whether the API root lists the core wp/v2 namespace.
func (w *WPJSONImporter) SupportsV2(ctx context.Context, apiRoot string) (bool, error) {
	resp, err := w.get(ctx, apiRoot)
	if err != nil {
		w.logger.Error().Err(err).Str("api_root", apiRoot).Msg("request failed")
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		w.logger.Error().Int("status_code", resp.StatusCode).Str("api_root", apiRoot).Msg("unexpected status code")
		return false, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	var index struct {
		Namespaces []string `json:"namespaces"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&index); err != nil {
		w.logger.Error().Err(err).Str("api_root", apiRoot).Msg("failed to decode API index")
		return false, err
	}

	for _, ns := range index.Namespaces {
		if ns == CoreNamespace {
			return true, nil
		}
	}
	return false, nil
}

// wpItem is the subset of a wp/v2 collection item the importer reads.
type wpItem struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Link  string `json:"link"`
	Title struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
	Content struct {
		Rendered string `json:"rendered"`
	} `json:"content"`
}

// FetchSiteContent yields every page, post and comment under apiRoot.
//
// Each collection's page count is read once from the first response and
// iteration stops at that count. A failed request is yielded as an error and
// ends the sequence. Ranging again issues fresh requests.
func (w *WPJSONImporter) FetchSiteContent(
	ctx context.Context,
	apiRoot string,
) iter.Seq2[models.ContentRecord, error] {
	return func(yield func(models.ContentRecord, error) bool) {
		for _, collection := range collections {
			route, err := collectionURL(apiRoot, collection)
			if err != nil {
				w.logger.Error().Err(err).Str("api_root", apiRoot).Msg("failed to build collection URL")
				yield(models.ContentRecord{}, err)
				return
			}

			if !w.fetchCollection(ctx, route, collection, yield) {
				return
			}
		}
	}
}

// fetchCollection yields one collection's records; false means stop.
func (w *WPJSONImporter) fetchCollection(
	ctx context.Context,
	route string,
	collection string,
	yield func(models.ContentRecord, error) bool,
) bool {
	items, header, err := w.fetchPage(ctx, route, 1)
	if err != nil {
		yield(models.ContentRecord{}, err)
		return false
	}

	totalPages, err := strconv.Atoi(strings.TrimSpace(header.Get(TotalPagesHeader)))
	if err != nil || totalPages < 0 {
		w.logger.Error().Str("route", route).Str("value", header.Get(TotalPagesHeader)).Msg("invalid total pages header")
		yield(models.ContentRecord{}, fmt.Errorf("%w: %s", ErrInvalidTotalPages, route))
		return false
	}

	w.logger.Info().Str("collection", collection).Int("total_pages", totalPages).Msg("Fetching collection")

	for page := 1; page <= totalPages; page++ {
		if page != 1 {
			items, _, err = w.fetchPage(ctx, route, page)
			if err != nil {
				yield(models.ContentRecord{}, err)
				return false
			}
		}

		for _, item := range items {
			if !yield(toRecord(item, collection), nil) {
				return false
			}
		}
	}

	return true
}

func (w *WPJSONImporter) fetchPage(ctx context.Context, route string, page int) ([]wpItem, http.Header, error) {
	reqURL, err := url.Parse(route)
	if err != nil {
		return nil, nil, err
	}
	query := reqURL.Query()
	query.Set("per_page", strconv.Itoa(w.perPage))
	query.Set("page", strconv.Itoa(page))
	reqURL.RawQuery = query.Encode()

	resp, err := w.get(ctx, reqURL.String())
	if err != nil {
		w.logger.Error().Err(err).Str("route", route).Int("page", page).Msg("request failed")
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		w.logger.Error().Int("status_code", resp.StatusCode).Str("route", route).Int("page", page).
			Msg("unexpected status code")
		return nil, nil, fmt.Errorf("%w: %d for %s page %d", ErrUnexpectedStatusCode, resp.StatusCode, route, page)
	}

	var items []wpItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		w.logger.Error().Err(err).Str("route", route).Int("page", page).Msg("failed to decode response")
		return nil, nil, err
	}

	return items, resp.Header, nil
}

func (w *WPJSONImporter) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	return w.client.Do(req)
}

func toRecord(item wpItem, collection string) models.ContentRecord {
	contentType := models.ContentType(item.Type)
	if contentType == "" {
		contentType = models.ContentType(strings.TrimSuffix(collection, "s"))
	}

	title := item.Title.Rendered
	if collection == "comments" {
		title = models.CommentTitle
	}

	return models.ContentRecord{
		ID:      strconv.FormatInt(item.ID, 10),
		Type:    contentType,
		Title:   title,
		Link:    item.Link,
		Content: item.Content.Rendered,
	}
}

// collectionURL builds the wp/v2 route of a collection under apiRoot.
// Sites without pretty permalinks expose the API as "?rest_route=/".
func collectionURL(apiRoot, collection string) (string, error) {
	root, err := url.Parse(apiRoot)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidAPIRoot, err)
	}
	if root.Scheme == "" || root.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidAPIRoot, apiRoot)
	}

	query := root.Query()
	if query.Has("rest_route") {
		query.Set("rest_route", path.Join("/", query.Get("rest_route"), CoreNamespace, collection)+"/")
		root.RawQuery = query.Encode()
		return root.String(), nil
	}

	return root.JoinPath(CoreNamespace, collection).String() + "/", nil
}

// SetPerPage sets the number of items to fetch per page; WordPress caps it at 100.
func (w *WPJSONImporter) SetPerPage(perPage int) {
	w.perPage = perPage
}

// SetTimeout sets the HTTP client timeout.
func (w *WPJSONImporter) SetTimeout(timeout time.Duration) {
	w.client.Timeout = timeout
}

// SetRateLimit caps outgoing requests per second; zero or less removes the cap.
func (w *WPJSONImporter) SetRateLimit(requestsPerSecond float64) {
	if requestsPerSecond <= 0 {
		w.limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	w.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
}
