package letterboxd

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Extraction rules for the HTML/JSON fragments Letterboxd returns. These are
// the most volatile part of the integration (no schema guarantee), so they
// are kept free of network and session state and tested against fixtures.

// operationResult is the JSON envelope Letterboxd returns for login and
// diary-write operations. Result is either the string "error" or a boolean.
type operationResult struct {
	Result   json.RawMessage `json:"result"`
	Messages []string        `json:"messages"`
	CSRF     string          `json:"csrf"`
}

// decodeResult interprets an operation envelope. ok reports whether the
// remote accepted the operation; message concatenates any server messages;
// csrf carries the rotated anti-forgery token when present.
func decodeResult(body []byte) (ok bool, message string, csrf string, err error) {
	var res operationResult
	if err := json.Unmarshal(body, &res); err != nil {
		return false, "", "", err
	}

	message = strings.Join(res.Messages, "")
	csrf = res.CSRF

	if len(res.Result) == 0 {
		return false, message, csrf, nil
	}

	var asString string
	if err := json.Unmarshal(res.Result, &asString); err == nil {
		return asString != "error", message, csrf, nil
	}
	var asBool bool
	if err := json.Unmarshal(res.Result, &asBool); err == nil {
		return asBool, message, csrf, nil
	}
	return false, message, csrf, nil
}

var filmSlugPattern = regexp.MustCompile(`/film/([^/]+)/`)

// filmSlugFromURL extracts the film slug from the URL a /tmdb/{id} lookup
// ultimately redirects to.
func filmSlugFromURL(finalURL string) (string, bool) {
	m := filmSlugPattern.FindStringSubmatch(finalURL)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// filmIDForSlug scans a film page for the marker node carrying the slug and
// returns the site's internal numeric film identifier.
func filmIDForSlug(doc *html.Node, slug string) (string, bool) {
	node := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attrValue(n, "data-film-slug") == slug
	})
	if node == nil {
		return "", false
	}
	id := attrValue(node, "data-film-id")
	return id, id != ""
}

// diaryEntryOptions is the per-entry form options blob embedded in diary
// page buttons.
type diaryEntryOptions struct {
	Endpoints struct {
		Data string `json:"data"`
	} `json:"endpoints"`
}

// diaryEntryEndpoints returns the detail-fragment endpoint for every diary
// entry control on the page. Buttons with a malformed options blob are
// skipped. found reports whether any entry controls were present at all,
// distinguishing an empty diary from a changed page layout.
func diaryEntryEndpoints(doc *html.Node) (endpoints []string, found bool) {
	walkNodes(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "button" {
			return
		}
		if attrValue(n, "data-bs-target") != "#diary-entry-form-modal" {
			return
		}
		found = true

		var opts diaryEntryOptions
		if err := json.Unmarshal([]byte(attrValue(n, "data-diary-entry-form-options")), &opts); err != nil {
			return
		}
		if opts.Endpoints.Data == "" {
			return
		}
		// The data endpoint serves JSON by default; dropping the json/ path
		// segment yields the HTML fragment carrying the viewing metadata.
		endpoints = append(endpoints, strings.Replace(opts.Endpoints.Data, "json/", "", 1))
	})
	return endpoints, found
}

var viewingDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"Jan 2, 2006",
}

// viewingDate pulls the logged date out of a diary-entry detail fragment.
// A missing wrapper section or meta tag is a structural miss, not an empty
// value.
func viewingDate(doc *html.Node) (time.Time, error) {
	section := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "section" &&
			strings.Contains(attrValue(n, "class"), "film-viewing-info-wrapper")
	})
	if section == nil {
		return time.Time{}, ErrStructureChanged
	}

	meta := findNode(section, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "meta"
	})
	if meta == nil {
		return time.Time{}, ErrStructureChanged
	}

	content := attrValue(meta, "content")
	if content == "" {
		return time.Time{}, ErrStructureChanged
	}

	for _, layout := range viewingDateLayouts {
		if t, err := time.Parse(layout, content); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrStructureChanged
}

// attrValue returns the value of the named attribute, or "".
func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// findNode returns the first node in document order matching the predicate.
func findNode(root *html.Node, match func(*html.Node) bool) *html.Node {
	if match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := findNode(c, match); n != nil {
			return n
		}
	}
	return nil
}

// walkNodes visits every node in document order.
func walkNodes(root *html.Node, visit func(*html.Node)) {
	visit(root)
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		walkNodes(c, visit)
	}
}
