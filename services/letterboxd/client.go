// Package letterboxd drives the Letterboxd web interface the way a browser
// would: a cookie-backed session, an anti-forgery token that rotates after
// each state-changing call, and form-posts against endpoints that return an
// HTML/JSON hybrid. There is no public API; every request shape here mirrors
// what the site itself sends.
package letterboxd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"boxdsync/internal/pace"

	"golang.org/x/net/html"
)

var letterboxdBaseURL = "https://letterboxd.com"

// setBaseURL overrides the Letterboxd base URL (used by tests).
func setBaseURL(u string) { letterboxdBaseURL = u }

// FilmIdentity is the site's representation of a film: a URL slug and an
// opaque internal numeric identifier.
type FilmIdentity struct {
	Slug   string
	FilmID string
}

// Client holds the session state for one Letterboxd account during one sync
// run: the cookie jar and the current anti-forgery token. Construct a fresh
// client per account per run; there is no re-authentication and no retry.
type Client struct {
	httpClient *http.Client
	gate       *pace.Gate

	username      string
	csrf          string
	authenticated bool
}

// NewClient creates an unauthenticated client sharing the given pacing gate.
func NewClient(gate *pace.Gate) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second, Jar: jar},
		gate:       gate,
	}
}

// Username returns the account name this session was authenticated as.
func (c *Client) Username() string { return c.username }

// Authenticated reports whether Authenticate has succeeded.
func (c *Client) Authenticated() bool { return c.authenticated }

// Authenticate performs the two-step login exchange: an empty post to pick
// up the session cookie and initial anti-forgery token, then the credential
// post carrying both.
func (c *Client) Authenticate(ctx context.Context, username, password string) error {
	loginURL := letterboxdBaseURL + "/user/login.do"

	body, err := c.postForm(ctx, loginURL, url.Values{})
	if err != nil {
		return err
	}
	_, _, csrf, err := decodeResult(body)
	if err != nil {
		return fmt.Errorf("decode login token response: %w", err)
	}
	c.csrf = csrf

	form := url.Values{
		"username":           {username},
		"password":           {password},
		"__csrf":             {c.csrf},
		"authenticationCode": {" "},
	}
	body, err = c.postForm(ctx, loginURL, form)
	if err != nil {
		return err
	}

	ok, message, csrf, err := decodeResult(body)
	if err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if !ok {
		return &AuthRejectedError{Message: message}
	}

	if csrf != "" {
		c.csrf = csrf
	}
	c.username = username
	c.authenticated = true
	return nil
}

// SearchFilmByTmdbID resolves a TMDB catalog id to the site's film identity
// by following the /tmdb/{id} redirect and scanning the film page. It does
// not require authentication but still counts against the shared gate.
func (c *Client) SearchFilmByTmdbID(ctx context.Context, tmdbID int) (*FilmIdentity, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/tmdb/%d", letterboxdBaseURL, tmdbID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tmdb lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: tmdb lookup returned %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	slug, ok := filmSlugFromURL(resp.Request.URL.String())
	if !ok {
		return nil, ErrFilmNotFound
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse film page: %w", err)
	}
	filmID, ok := filmIDForSlug(doc, slug)
	if !ok {
		return nil, ErrFilmNotFound
	}

	return &FilmIdentity{Slug: slug, FilmID: filmID}, nil
}

// LastLoggedDate returns the most recent date the authenticated account
// logged the film, scraping the per-film diary page. ok is false when the
// diary holds no entries for the film. A fragment that cannot be read is
// skipped; a changed page layout stops the scan and returns whatever dates
// were already collected.
func (c *Client) LastLoggedDate(ctx context.Context, slug string) (latest time.Time, ok bool, err error) {
	if !c.authenticated {
		return time.Time{}, false, fmt.Errorf("letterboxd: diary read requires authentication")
	}

	if err := c.gate.Wait(ctx); err != nil {
		return time.Time{}, false, err
	}

	diaryURL := fmt.Sprintf("%s/%s/film/%s/diary/", letterboxdBaseURL, c.username, slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, diaryURL, nil)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("diary page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, false, fmt.Errorf("%w: diary page returned %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse diary page: %w", err)
	}

	endpoints, found := diaryEntryEndpoints(doc)
	if !found {
		return time.Time{}, false, nil
	}

	for _, endpoint := range endpoints {
		date, err := c.fetchViewingDate(ctx, endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return latest, ok, ctx.Err()
			}
			// The entry wrapper disappearing means the layout changed; keep
			// whatever was collected so far. Anything else is a one-off
			// broken fragment and the remaining entries may still parse.
			if errors.Is(err, ErrStructureChanged) {
				break
			}
			continue
		}
		if !ok || date.After(latest) {
			latest = date
			ok = true
		}
	}
	return latest, ok, nil
}

// fetchViewingDate loads one diary-entry detail fragment and extracts its
// logged date. Each fetch is a distinct outbound request and takes its own
// gate slot.
func (c *Client) fetchViewingDate(ctx context.Context, endpoint string) (time.Time, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return time.Time{}, err
	}

	target := endpoint
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = letterboxdBaseURL + "/" + strings.TrimPrefix(target, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("entry fragment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("entry fragment returned %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse entry fragment: %w", err)
	}
	return viewingDate(doc)
}

// MarkAsWatched creates a diary entry for the film. A nil watchedAt lets the
// remote side stamp the entry with today's date. Tags are only attached when
// an explicit date is supplied, matching the diary form's own behavior.
func (c *Client) MarkAsWatched(ctx context.Context, filmID string, watchedAt *time.Time, tags []string, liked bool) error {
	if !c.authenticated {
		return fmt.Errorf("letterboxd: diary write requires authentication")
	}

	entryDate := time.Now()
	if watchedAt != nil {
		entryDate = *watchedAt
	}

	tagList := ""
	if watchedAt != nil && len(tags) > 0 {
		tagList = "[" + strings.Join(tags, ",") + "]"
	}

	form := url.Values{
		"__csrf":         {c.csrf},
		"json":           {"true"},
		"viewingId":      {""},
		"filmId":         {filmID},
		"specifiedDate":  {strconv.FormatBool(watchedAt != nil)},
		"viewingDateStr": {entryDate.Format("2006-01-02")},
		"review":         {""},
		"tags":           {tagList},
		"rating":         {"0"},
		"liked":          {strconv.FormatBool(liked)},
	}

	body, err := c.postForm(ctx, letterboxdBaseURL+"/s/save-diary-entry", form)
	if err != nil {
		return err
	}

	ok, message, csrf, err := decodeResult(body)
	if err != nil {
		return fmt.Errorf("decode diary response: %w", err)
	}
	if !ok {
		return &WriteRejectedError{Message: message}
	}

	// The anti-forgery token rotates after every accepted write.
	if csrf != "" {
		c.csrf = csrf
	}
	return nil
}

// postForm issues a paced form post and returns the response body. Any
// status other than 200 fails before the body is interpreted.
func (c *Client) postForm(ctx context.Context, target string, form url.Values) ([]byte, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", letterboxdBaseURL)
	req.Header.Set("Referer", letterboxdBaseURL+"/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("letterboxd request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
