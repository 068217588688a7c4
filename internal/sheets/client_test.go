package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rajurautt/happybus/internal/model"
)

type recordedCall struct {
	method string
	path   string
	query  string
	body   string
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := NewClient(srv.URL, "sheet-123", "api-key", srv.URL+"/script", 5*time.Second)
	return c, srv
}

func TestFetchRows(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sheet-123/values/Buses" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "api-key" {
			t.Error("missing api key")
		}
		w.Write([]byte(`{"values":[["busId","route"],["B1","RouteA"]]}`))
	})
	defer srv.Close()

	rows, err := c.FetchRows(context.Background(), SheetBuses)
	if err != nil {
		t.Fatalf("FetchRows() error: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "B1" {
		t.Errorf("rows = %v", rows)
	}
}

func TestFetchRowsErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"Bad status", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}},
		{"Bad payload", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("oops"))
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			client, srv := newTestClient(t, c.handler)
			defer srv.Close()

			_, err := client.FetchRows(context.Background(), SheetLocations)
			if !errors.Is(err, ErrFetch) {
				t.Errorf("FetchRows() error = %v, want ErrFetch", err)
			}
		})
	}
}

func TestPublishLocationUpdatesExistingRow(t *testing.T) {
	var calls []recordedCall
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"values":[["busId","lat","lng","speed","ts","status"],["B7","0","0","0","",""],["B1","12.9","77.5","20","2026-01-01T00:00:00Z","ACTIVE"]]}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, recordedCall{r.Method, r.URL.Path, r.URL.RawQuery, string(body)})
		w.Write([]byte(`{}`))
	})
	defer srv.Close()

	if err := c.PublishLocation(context.Background(), "B1", 13.01, 77.61, 35); err != nil {
		t.Fatalf("PublishLocation() error: %v", err)
	}

	// B1 sits on sheet row 3; columns B through E get overwritten in order.
	wantCells := []string{"B3", "C3", "D3", "E3"}
	if len(calls) != len(wantCells) {
		t.Fatalf("got %d writes, want %d", len(calls), len(wantCells))
	}
	for i, call := range calls {
		if call.method != http.MethodPut {
			t.Errorf("write %d method = %s, want PUT", i, call.method)
		}
		if !strings.HasSuffix(call.path, "!"+wantCells[i]) {
			t.Errorf("write %d path = %q, want cell %s", i, call.path, wantCells[i])
		}
	}
	if !strings.Contains(calls[0].body, "13.01") {
		t.Errorf("latitude write body = %q", calls[0].body)
	}
}

func TestPublishLocationAppendsNewRow(t *testing.T) {
	var appended [][]string
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"values":[["busId","lat","lng","speed","ts","status"]]}`))
			return
		}
		if !strings.Contains(r.URL.Path, ":append") {
			t.Errorf("expected append call, got %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Values [][]string `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode append body: %v", err)
		}
		appended = body.Values
		w.Write([]byte(`{}`))
	})
	defer srv.Close()

	if err := c.PublishLocation(context.Background(), "B9", 12.5, 77.5, 0); err != nil {
		t.Fatalf("PublishLocation() error: %v", err)
	}
	if len(appended) != 1 {
		t.Fatalf("appended %d rows, want 1", len(appended))
	}
	row := appended[0]
	if len(row) != 6 || row[0] != "B9" || row[1] != "12.5" || row[5] != "" {
		t.Errorf("appended row = %v", row)
	}
}

func TestSubmitRegistration(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{"Accepted", func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Fatalf("parse multipart: %v", err)
			}
			if r.FormValue("action") != "registerStudent" {
				t.Errorf("action = %q", r.FormValue("action"))
			}
			if !strings.Contains(r.FormValue("data"), "21CS042") {
				t.Error("data payload missing roll number")
			}
			w.Write([]byte(`{"success":true}`))
		}, ""},
		{"Unparseable OK body accepted", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>ok</html>"))
		}, ""},
		{"Script reports failure", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":false,"error":"duplicate roll"}`))
		}, "duplicate roll"},
	}

	form := model.RegistrationForm{Name: "Asha", Roll: "21CS042"}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			client, srv := newTestClient(t, c.handler)
			defer srv.Close()

			err := client.SubmitRegistration(context.Background(), form)
			if c.wantErr == "" {
				if err != nil {
					t.Fatalf("SubmitRegistration() error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != c.wantErr {
				t.Fatalf("SubmitRegistration() error = %v, want %q", err, c.wantErr)
			}
		})
	}
}
