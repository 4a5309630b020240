package letterboxd

import (
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"
)

func parseFixture(t *testing.T, fragment string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestDecodeResult(t *testing.T) {
	cases := []struct {
		name        string
		body        string
		wantOK      bool
		wantMessage string
		wantCSRF    string
	}{
		{
			name:        "string error with message",
			body:        `{"result":"error","messages":["bad password"]}`,
			wantOK:      false,
			wantMessage: "bad password",
		},
		{
			name:   "boolean true",
			body:   `{"result":true}`,
			wantOK: true,
		},
		{
			name:   "boolean false",
			body:   `{"result":false}`,
			wantOK: false,
		},
		{
			name:     "success with rotated token",
			body:     `{"result":true,"csrf":"next-token"}`,
			wantOK:   true,
			wantCSRF: "next-token",
		},
		{
			name:        "multiple messages concatenated",
			body:        `{"result":"error","messages":["first","second"]}`,
			wantOK:      false,
			wantMessage: "firstsecond",
		},
		{
			name:   "missing result is a failure",
			body:   `{"messages":[]}`,
			wantOK: false,
		},
		{
			name:   "non-error string result is a success",
			body:   `{"result":"ok"}`,
			wantOK: true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ok, message, csrf, err := decodeResult([]byte(c.body))
			if err != nil {
				t.Fatalf("decodeResult failed: %v", err)
			}
			if ok != c.wantOK {
				t.Errorf("ok = %v, want %v", ok, c.wantOK)
			}
			if message != c.wantMessage {
				t.Errorf("message = %q, want %q", message, c.wantMessage)
			}
			if csrf != c.wantCSRF {
				t.Errorf("csrf = %q, want %q", csrf, c.wantCSRF)
			}
		})
	}
}

func TestDecodeResultRejectsMalformedJSON(t *testing.T) {
	if _, _, _, err := decodeResult([]byte("<html>not json</html>")); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
}

func TestFilmSlugFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://letterboxd.com/film/the-matrix/", "the-matrix", true},
		{"https://letterboxd.com/film/seven-samurai/crew/", "seven-samurai", true},
		{"https://letterboxd.com/search/603/", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := filmSlugFromURL(c.url)
		if ok != c.ok || got != c.want {
			t.Errorf("filmSlugFromURL(%q) = (%q, %v), want (%q, %v)", c.url, got, ok, c.want, c.ok)
		}
	}
}

func TestFilmIDForSlug(t *testing.T) {
	doc := parseFixture(t, `<html><body>
		<div data-film-slug="another-film" data-film-id="99"></div>
		<div class="poster" data-film-slug="the-matrix" data-film-id="51568"></div>
	</body></html>`)

	id, ok := filmIDForSlug(doc, "the-matrix")
	if !ok || id != "51568" {
		t.Fatalf("filmIDForSlug = (%q, %v), want (51568, true)", id, ok)
	}

	if _, ok := filmIDForSlug(doc, "missing-film"); ok {
		t.Fatal("expected miss for unknown slug")
	}
}

func TestFilmIDForSlugMissingID(t *testing.T) {
	doc := parseFixture(t, `<div data-film-slug="the-matrix"></div>`)
	if _, ok := filmIDForSlug(doc, "the-matrix"); ok {
		t.Fatal("expected miss when data-film-id attribute is absent")
	}
}

func TestDiaryEntryEndpoints(t *testing.T) {
	doc := parseFixture(t, `<html><body>
		<button data-bs-target="#diary-entry-form-modal"
			data-diary-entry-form-options='{"endpoints":{"data":"https://letterboxd.com/json/user/film/entry/1/"}}'></button>
		<button data-bs-target="#diary-entry-form-modal"
			data-diary-entry-form-options='not-json'></button>
		<button data-bs-target="#other-modal"
			data-diary-entry-form-options='{"endpoints":{"data":"https://letterboxd.com/json/ignored/"}}'></button>
		<button data-bs-target="#diary-entry-form-modal"
			data-diary-entry-form-options='{"endpoints":{"data":"https://letterboxd.com/json/user/film/entry/2/"}}'></button>
	</body></html>`)

	endpoints, found := diaryEntryEndpoints(doc)
	if !found {
		t.Fatal("expected entry markers to be found")
	}
	want := []string{
		"https://letterboxd.com/user/film/entry/1/",
		"https://letterboxd.com/user/film/entry/2/",
	}
	if len(endpoints) != len(want) {
		t.Fatalf("got %d endpoints, want %d: %v", len(endpoints), len(want), endpoints)
	}
	for i := range want {
		if endpoints[i] != want[i] {
			t.Errorf("endpoint %d = %q, want %q", i, endpoints[i], want[i])
		}
	}
}

func TestDiaryEntryEndpointsEmptyDiary(t *testing.T) {
	doc := parseFixture(t, `<html><body><p>No diary entries.</p></body></html>`)
	endpoints, found := diaryEntryEndpoints(doc)
	if found || len(endpoints) != 0 {
		t.Fatalf("expected empty diary, got found=%v endpoints=%v", found, endpoints)
	}
}

func TestViewingDate(t *testing.T) {
	doc := parseFixture(t, `<section class="film-viewing-info-wrapper">
		<meta content="2024-03-10">
	</section>`)

	date, err := viewingDate(doc)
	if err != nil {
		t.Fatalf("viewingDate failed: %v", err)
	}
	want := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	if !date.Equal(want) {
		t.Errorf("date = %v, want %v", date, want)
	}
}

func TestViewingDateStructuralMiss(t *testing.T) {
	cases := []struct {
		name     string
		fragment string
	}{
		{"section absent", `<div>redesigned page</div>`},
		{"meta absent", `<section class="film-viewing-info-wrapper"><span>no meta</span></section>`},
		{"content empty", `<section class="film-viewing-info-wrapper"><meta content=""></section>`},
		{"content unparseable", `<section class="film-viewing-info-wrapper"><meta content="not a date"></section>`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			doc := parseFixture(t, c.fragment)
			if _, err := viewingDate(doc); !errors.Is(err, ErrStructureChanged) {
				t.Fatalf("expected ErrStructureChanged, got %v", err)
			}
		})
	}
}
