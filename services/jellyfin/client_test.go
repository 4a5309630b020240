package jellyfin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEnsureScheme(t *testing.T) {
	cases := []struct{ in, want string }{
		{"jellyfin.local:8096", "https://jellyfin.local:8096"},
		{"http://192.168.1.5:8096/", "http://192.168.1.5:8096"},
		{"https://media.example.com", "https://media.example.com"},
	}
	for _, c := range cases {
		if got := ensureScheme(c.in); got != c.want {
			t.Errorf("ensureScheme(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTmdbID(t *testing.T) {
	item := Item{ProviderIds: map[string]string{"Imdb": "tt0133093", "tmdb": "603"}}
	id, ok := item.TmdbID()
	if !ok || id != "603" {
		t.Errorf("TmdbID = (%q, %v), want (603, true)", id, ok)
	}

	if _, ok := (Item{ProviderIds: map[string]string{"Imdb": "tt0133093"}}).TmdbID(); ok {
		t.Error("expected miss without a Tmdb provider id")
	}
	if _, ok := (Item{}).TmdbID(); ok {
		t.Error("expected miss without provider ids")
	}
}

func TestMoviesPagination(t *testing.T) {
	played := time.Date(2024, 3, 10, 21, 0, 0, 0, time.UTC)
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if got := r.Header.Get("Authorization"); got != `MediaBrowser Token="secret"` {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("Filters"); got != "IsPlayed" {
			t.Errorf("Filters = %q, want IsPlayed", got)
		}

		start := r.URL.Query().Get("StartIndex")
		if start == "0" {
			// A full page forces a second fetch.
			fmt.Fprintf(w, `{"Items":[%s],"TotalRecordCount":%d,"StartIndex":0}`,
				fullPage(played), pageSize+1)
			return
		}
		fmt.Fprint(w, `{"Items":[
			{"Name":"The Matrix","Id":"abc","ProductionYear":1999,
			 "ProviderIds":{"Tmdb":"603"},
			 "UserData":{"Played":true,"IsFavorite":true,"LastPlayedDate":"2024-03-10T21:00:00Z"}},
			{"Name":"Unwatched","Id":"def","UserData":{"Played":false,"PlayCount":0}}
		],"TotalRecordCount":2,"StartIndex":200}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	items, err := client.Movies(context.Background(), "user-1", true)
	if err != nil {
		t.Fatalf("Movies failed: %v", err)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
	if len(items) != pageSize+1 {
		t.Fatalf("got %d items, want %d", len(items), pageSize+1)
	}

	last := items[len(items)-1]
	if last.Name != "The Matrix" {
		t.Errorf("last item = %q", last.Name)
	}
	if last.UserData == nil || !last.UserData.IsFavorite {
		t.Error("expected favorite flag on last item")
	}
	if last.UserData.LastPlayedDate == nil || !last.UserData.LastPlayedDate.Equal(played) {
		t.Errorf("LastPlayedDate = %v, want %v", last.UserData.LastPlayedDate, played)
	}
}

func fullPage(played time.Time) string {
	items := ""
	for i := 0; i < pageSize; i++ {
		if i > 0 {
			items += ","
		}
		items += fmt.Sprintf(`{"Name":"Movie %d","Id":"id-%d","UserData":{"Played":true,"LastPlayedDate":%q}}`,
			i, i, played.Format(time.RFC3339))
	}
	return items
}

func TestMoviesWithoutPlayedFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("Filters") {
			t.Errorf("Filters = %q, want absent", r.URL.Query().Get("Filters"))
		}
		fmt.Fprint(w, `{"Items":[
			{"Name":"Unwatched","Id":"def","UserData":{"Played":false}}
		],"TotalRecordCount":1,"StartIndex":0}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	items, err := client.Movies(context.Background(), "user-1", false)
	if err != nil {
		t.Fatalf("Movies failed: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Unwatched" {
		t.Errorf("items = %+v", items)
	}
}

func TestMoviesUnauthorizedDoesNotRetry(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad-key")
	if _, err := client.Movies(context.Background(), "user-1", true); err == nil {
		t.Fatal("expected error for rejected API key")
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1 (no retry on auth failure)", requests)
	}
}

func TestMoviesRetriesServerErrors(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"Items":[],"TotalRecordCount":0,"StartIndex":0}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	items, err := client.Movies(context.Background(), "user-1", true)
	if err != nil {
		t.Fatalf("Movies failed after retries: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items, want 0", len(items))
	}
	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}
}

func TestUsers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `[{"Name":"sara","Id":"user-1"},{"Name":"tom","Id":"user-2"}]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	users, err := client.Users(context.Background())
	if err != nil {
		t.Fatalf("Users failed: %v", err)
	}
	if len(users) != 2 || users[0].Name != "sara" || users[1].ID != "user-2" {
		t.Errorf("users = %+v", users)
	}
}
