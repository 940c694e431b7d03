package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/young1lin/supplementbot/internal/config"
	"github.com/young1lin/supplementbot/internal/models"
)

func shoppingServer(t *testing.T, status int, body string, gotQuery *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("Expected path /search, got %s", r.URL.Path)
		}
		if gotQuery != nil {
			*gotQuery = r.URL.RawQuery
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newShopping(baseURL string) *ShoppingProvider {
	return NewShoppingProvider(&config.ShoppingConfig{
		BaseURL: baseURL,
		APIKey:  "serp-key",
		Engine:  "google_shopping",
		Num:     5,
		Timeout: 5,
	})
}

func TestFetchSupplementInfo(t *testing.T) {
	t.Run("Request parameters", func(t *testing.T) {
		var rawQuery string
		srv := shoppingServer(t, http.StatusOK, `{"shopping_results": []}`, &rawQuery)

		newShopping(srv.URL).FetchSupplementInfo(context.Background(), "omega-3 supplement")

		for _, want := range []string{"engine=google_shopping", "q=omega-3+supplement", "num=5", "api_key=serp-key"} {
			if !strings.Contains(rawQuery, want) {
				t.Errorf("Expected query to contain %q, got %q", want, rawQuery)
			}
		}
	})

	t.Run("No results", func(t *testing.T) {
		for _, body := range []string{`{"shopping_results": []}`, `{"search_metadata": {}}`} {
			srv := shoppingServer(t, http.StatusOK, body, nil)

			got := newShopping(srv.URL).FetchSupplementInfo(context.Background(), "unobtainium")
			if !got.IsMessage() || got.Message != NoResultsMessage {
				t.Errorf("Expected no-results message, got %+v", got)
			}

			data, _ := json.Marshal(got)
			if string(data) != `"No supplements found for your query."` {
				t.Errorf("Unexpected JSON: %s", data)
			}
		}
	})

	t.Run("Truncates to five", func(t *testing.T) {
		var items []string
		for i := 0; i < 7; i++ {
			items = append(items, fmt.Sprintf(`{"title":"Item %d","link":"https://x/%d","extracted_price":%d.5,"thumbnail":"https://img/%d","rating":4.5}`, i, i, i, i))
		}
		srv := shoppingServer(t, http.StatusOK, `{"shopping_results":[`+strings.Join(items, ",")+`]}`, nil)

		got := newShopping(srv.URL).FetchSupplementInfo(context.Background(), "fish oil")
		if len(got.Records) != 5 {
			t.Fatalf("Expected 5 records, got %d", len(got.Records))
		}
		if got.Records[4].Name != "Item 4" {
			t.Errorf("Expected 'Item 4', got '%s'", got.Records[4].Name)
		}
	})

	t.Run("Fewer than five", func(t *testing.T) {
		srv := shoppingServer(t, http.StatusOK, `{"shopping_results":[{"title":"A"},{"title":"B"}]}`, nil)

		got := newShopping(srv.URL).FetchSupplementInfo(context.Background(), "fish oil")
		if len(got.Records) != 2 {
			t.Errorf("Expected 2 records, got %d", len(got.Records))
		}
	})

	t.Run("Projection", func(t *testing.T) {
		srv := shoppingServer(t, http.StatusOK, `{"shopping_results":[
			{"title":"Omega Max","link":"https://shop/1","extracted_price":19.99,"price":"$19.99","thumbnail":"https://img/1","source":"Shop"},
			{"title":"Bare","product_link":"https://shop/2"}
		]}`, nil)

		got := newShopping(srv.URL).FetchSupplementInfo(context.Background(), "omega")
		if len(got.Records) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(got.Records))
		}

		first := got.Records[0]
		if first.Name != "Omega Max" || first.Link != "https://shop/1" || first.Image != "https://img/1" {
			t.Errorf("Unexpected record: %+v", first)
		}
		if first.Price == nil || *first.Price != 19.99 {
			t.Errorf("Expected price 19.99, got %v", first.Price)
		}

		second := got.Records[1]
		if second.Link != "https://shop/2" {
			t.Errorf("Expected product_link fallback, got '%s'", second.Link)
		}
		if second.Price != nil || second.Image != "" {
			t.Errorf("Expected empty price and image, got %+v", second)
		}

		data, _ := json.Marshal(got)
		var decoded []map[string]interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("Expected JSON array, got %s", data)
		}
		for i, rec := range decoded {
			if len(rec) != 4 {
				t.Errorf("Record %d: expected exactly 4 fields, got %v", i, rec)
			}
			for _, key := range []string{"name", "link", "price", "image"} {
				if _, ok := rec[key]; !ok {
					t.Errorf("Record %d: missing field %q", i, key)
				}
			}
		}
	})

	t.Run("HTTP error becomes message", func(t *testing.T) {
		srv := shoppingServer(t, http.StatusUnauthorized, `{"error":"Invalid API key."}`, nil)

		got := newShopping(srv.URL).FetchSupplementInfo(context.Background(), "omega")
		if !got.IsMessage() || !strings.HasPrefix(got.Message, "An error occurred: ") {
			t.Errorf("Expected error message, got %+v", got)
		}
		if !strings.Contains(got.Message, "Invalid API key.") {
			t.Errorf("Expected provider error text, got '%s'", got.Message)
		}
	})

	t.Run("Transport error becomes message", func(t *testing.T) {
		srv := shoppingServer(t, http.StatusOK, `{}`, nil)
		srv.Close()

		got := newShopping(srv.URL).FetchSupplementInfo(context.Background(), "omega")
		if !strings.HasPrefix(got.Message, "An error occurred: ") {
			t.Errorf("Expected error message, got %+v", got)
		}
	})
}

func TestParseShoppingResults(t *testing.T) {
	got := parseShoppingResults([]byte(`{"shopping_results":[{"title":"A","extracted_price":"n/a"}]}`), 5)
	if len(got) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(got))
	}
	if got[0].Price != nil {
		t.Errorf("Non-numeric price must be empty, got %v", *got[0].Price)
	}
	if got[0] != (models.SupplementRecord{Name: "A"}) {
		t.Errorf("Unexpected record: %+v", got[0])
	}
}

const ddgPage = `<!DOCTYPE html>
<html><body>
<div class="result results_links">
  <h2 class="result__title"><a class="result__a" href="https://www.webmd.com/x">Fish Oil - WebMD</a></h2>
  <a class="result__snippet" href="https://www.webmd.com/x">Fish oil is <b>commonly</b> used for
    heart health.</a>
</div>
<div class="result results_links">
  <a class="result__snippet" href="https://www.webmd.com/y">Users rate it 4.1 out of 5.</a>
</div>
</body></html>`

func reviewServer(t *testing.T, status int, body string, gotQuery *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotQuery != nil {
			*gotQuery = r.URL.Query().Get("q")
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchReviews(t *testing.T) {
	t.Run("Snippets joined", func(t *testing.T) {
		var q string
		srv := reviewServer(t, http.StatusOK, ddgPage, &q)
		p := NewReviewProvider(&config.ReviewsConfig{BaseURL: srv.URL + "/html/", Site: "webmd.com", Timeout: 5})

		text, found, err := p.SearchReviews(context.Background(), "Fish Oil")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !found {
			t.Fatal("Expected reviews to be found")
		}
		if q != "Fish Oil reviews site:webmd.com" {
			t.Errorf("Unexpected query: %q", q)
		}
		want := "Fish oil is commonly used for heart health. Users rate it 4.1 out of 5."
		if text != want {
			t.Errorf("Expected %q, got %q", want, text)
		}
	})

	t.Run("No results is absent", func(t *testing.T) {
		srv := reviewServer(t, http.StatusOK, `<html><body><div class="no-results">No results.</div></body></html>`, nil)
		p := NewReviewProvider(&config.ReviewsConfig{BaseURL: srv.URL, Timeout: 5})

		text, found, err := p.SearchReviews(context.Background(), "Unobtainium")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if found || text != "" {
			t.Errorf("Expected absent result, got found=%v text=%q", found, text)
		}
	})

	t.Run("HTTP error", func(t *testing.T) {
		srv := reviewServer(t, http.StatusForbidden, "blocked", nil)
		p := NewReviewProvider(&config.ReviewsConfig{BaseURL: srv.URL, Timeout: 5})

		if _, _, err := p.SearchReviews(context.Background(), "Fish Oil"); err == nil {
			t.Error("Expected error for non-2xx status")
		}
	})
}

func TestSupplementLookup_MarshalJSON(t *testing.T) {
	price := 9.5
	tests := []struct {
		name   string
		lookup SupplementLookup
		want   string
	}{
		{"message", LookupMessage("An error occurred: boom"), `"An error occurred: boom"`},
		{"zero value", SupplementLookup{}, `"No supplements found for your query."`},
		{"records", SupplementLookup{Records: []models.SupplementRecord{{Name: "A", Link: "l", Price: &price, Image: "i"}}},
			`[{"name":"A","link":"l","price":9.5,"image":"i"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.lookup)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, data)
			}
		})
	}
}
