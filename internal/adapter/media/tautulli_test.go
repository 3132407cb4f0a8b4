package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"wads/internal/infra/config"
)

func TestTautulliGetHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("cmd") != "get_history" {
			t.Errorf("cmd = %q", q.Get("cmd"))
		}
		if q.Get("apikey") != "k" {
			t.Errorf("apikey = %q", q.Get("apikey"))
		}
		if q.Get("user_id") != "7" || q.Get("media_type") != "movie" || q.Get("length") != "25" {
			t.Errorf("params = %v", q)
		}
		w.Write([]byte(`{"response":{"result":"success","data":{"data":[
			{"user":"bob","full_title":"Dune","media_type":"movie","percent_complete":100}]}}}`))
	}))
	defer srv.Close()

	c := NewTautulliClient(config.ServiceConfig{URL: srv.URL, APIKey: "k"})
	records, err := c.GetHistory(context.Background(), HistoryParams{UserID: 7, MediaType: "movie"})
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(records) != 1 || records[0].FullTitle != "Dune" {
		t.Errorf("records = %+v", records)
	}
}

func TestTautulliGetUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("cmd"); got != "get_users" {
			t.Errorf("cmd = %q", got)
		}
		w.Write([]byte(`{"response":{"result":"success","data":[
			{"user_id":7,"username":"bob","friendly_name":"Bob"}]}}`))
	}))
	defer srv.Close()

	c := NewTautulliClient(config.ServiceConfig{URL: srv.URL, APIKey: "k"})
	users, err := c.GetUsers(context.Background())
	if err != nil {
		t.Fatalf("GetUsers: %v", err)
	}
	if len(users) != 1 || users[0].UserID != 7 {
		t.Errorf("users = %+v", users)
	}
}

func TestBraveSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Subscription-Token"); got != "tok" {
			t.Errorf("token = %q", got)
		}
		q := r.URL.Query()
		if q.Get("q") != "dune part three release date" || q.Get("count") != "5" {
			t.Errorf("params = %v", q)
		}
		w.Write([]byte(`{"web":{"results":[{"title":"Dune 3","url":"https://example.com","description":"..."}]}}`))
	}))
	defer srv.Close()

	c := NewBraveClient(config.ServiceConfig{URL: srv.URL, APIKey: "tok"})
	results, err := c.Search(context.Background(), "dune part three release date", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Dune 3" {
		t.Errorf("results = %+v", results)
	}
}
