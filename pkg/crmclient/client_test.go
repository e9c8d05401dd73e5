package crmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newFakeProxy(t *testing.T, listHits *atomic.Int64) *httptest.Server {
	t.Helper()
	opportunities := []Opportunity{
		{ID: "opp_1", Name: "Globex", Email: "buyer@globex.test", Status: "New", Value: 1200},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/opportunities", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listHits.Add(1)
			json.NewEncoder(w).Encode(map[string]any{"opportunities": opportunities})
		case http.MethodPost:
			var body struct {
				Name  string  `json:"name"`
				Email string  `json:"email"`
				Value float64 `json:"value"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			created := Opportunity{ID: "opp_2", Name: body.Name, Email: body.Email, Status: "New", Value: body.Value}
			opportunities = append(opportunities, created)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"opportunity": created})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/opportunities/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/interactions") {
			json.NewEncoder(w).Encode(map[string]any{"interactions": []Interaction{}})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpportunitiesListIsCached(t *testing.T) {
	var listHits atomic.Int64
	srv := newFakeProxy(t, &listHits)
	client := New(srv.URL)

	first, err := client.Opportunities(context.Background())
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	second, err := client.Opportunities(context.Background())
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if listHits.Load() != 1 {
		t.Fatalf("server saw %d list requests, want 1", listHits.Load())
	}
	if len(first) != 1 || len(second) != 1 || first[0].ID != second[0].ID {
		t.Fatalf("cached read differs: %v vs %v", first, second)
	}
}

func TestCreateInvalidatesAndRefetchesList(t *testing.T) {
	var listHits atomic.Int64
	srv := newFakeProxy(t, &listHits)
	client := New(srv.URL)

	if _, err := client.Opportunities(context.Background()); err != nil {
		t.Fatalf("prime list: %v", err)
	}

	updates, cancel := client.Cache().Subscribe(keyOpportunities)
	defer cancel()

	if _, err := client.CreateOpportunity(context.Background(), "Initech", "pm@initech.test", "New", 500); err != nil {
		t.Fatalf("create: %v", err)
	}

	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("no refetch notification after create")
	}

	items, err := client.Opportunities(context.Background())
	if err != nil {
		t.Fatalf("list after create: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d opportunities after create, want 2", len(items))
	}
	if listHits.Load() != 2 {
		t.Fatalf("server saw %d list requests, want 2", listHits.Load())
	}
}

func TestAPIErrorParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"NOT_FOUND","error":"Not found"}`))
	}))
	t.Cleanup(srv.Close)

	client := New(srv.URL)
	_, err := client.Opportunity(context.Background(), "opp_missing")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Code != "NOT_FOUND" {
		t.Fatalf("got %+v", apiErr)
	}
}

func TestBearerTokenAttached(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"opportunities": []Opportunity{}})
	}))
	t.Cleanup(srv.Close)

	client := New(srv.URL)
	client.SetToken("tok-123")
	if _, err := client.Opportunities(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}
