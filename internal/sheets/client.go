package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rajurautt/happybus/internal/model"
)

// Sheet names in the backing spreadsheet.
const (
	SheetStudents  = "Students"
	SheetBuses     = "Buses"
	SheetDrivers   = "Drivers"
	SheetLocations = "LiveLocations"
)

var (
	// ErrFetch marks network/HTTP failures reaching the store. The poll
	// loop treats these as transient and keeps the previous snapshot.
	ErrFetch = errors.New("sheet fetch failed")

	// ErrWrite marks failures updating or appending rows.
	ErrWrite = errors.New("sheet write failed")
)

// Client reads and writes the spreadsheet store through its values API.
type Client struct {
	baseURL       string
	sheetID       string
	apiKey        string
	appsScriptURL string
	httpc         *http.Client
}

func NewClient(baseURL, sheetID, apiKey, appsScriptURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:       baseURL,
		sheetID:       sheetID,
		apiKey:        apiKey,
		appsScriptURL: appsScriptURL,
		httpc:         &http.Client{Timeout: timeout},
	}
}

type valuesResponse struct {
	Values [][]string `json:"values"`
}

// FetchRows returns all rows of a sheet, header row included, as ordered
// cell strings.
func (c *Client) FetchRows(ctx context.Context, sheet string) ([][]string, error) {
	u := fmt.Sprintf("%s/%s/values/%s?key=%s",
		c.baseURL, c.sheetID, url.PathEscape(sheet), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %s for sheet %s", ErrFetch, resp.Status, sheet)
	}

	var payload valuesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode %s payload: %v", ErrFetch, sheet, err)
	}
	return payload.Values, nil
}

// UpdateCell overwrites a single cell, addressed as e.g. "B3".
func (c *Client) UpdateCell(ctx context.Context, sheet, cell, value string) error {
	u := fmt.Sprintf("%s/%s/values/%s!%s?valueInputOption=RAW&key=%s",
		c.baseURL, c.sheetID, url.PathEscape(sheet), cell, url.QueryEscape(c.apiKey))
	body := map[string][][]string{"values": {{value}}}
	return c.write(ctx, http.MethodPut, u, body)
}

// AppendRow appends one row of cell values to a sheet.
func (c *Client) AppendRow(ctx context.Context, sheet string, values []string) error {
	u := fmt.Sprintf("%s/%s/values/%s:append?valueInputOption=RAW&key=%s",
		c.baseURL, c.sheetID, url.PathEscape(sheet), url.QueryEscape(c.apiKey))
	body := map[string][][]string{"values": {values}}
	return c.write(ctx, http.MethodPost, u, body)
}

func (c *Client) write(ctx context.Context, method, u string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %s", ErrWrite, resp.Status)
	}
	return nil
}

// PublishLocation records a driver fix for a bus: columns B-E of the
// existing LiveLocations row are overwritten, or a new row is appended when
// the bus has none yet. Column F (trackingStatus) is left untouched for the
// classifier to interpret.
func (c *Client) PublishLocation(ctx context.Context, busID string, lat, lng, speed float64) error {
	ts := time.Now().UTC().Format(time.RFC3339)
	latS := strconv.FormatFloat(lat, 'f', -1, 64)
	lngS := strconv.FormatFloat(lng, 'f', -1, 64)
	speedS := strconv.FormatFloat(speed, 'f', -1, 64)

	rows, err := c.FetchRows(ctx, SheetLocations)
	if err != nil {
		return err
	}

	rowIndex := -1
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) > 0 && rows[i][0] == busID {
			rowIndex = i + 1 // sheet rows are 1-indexed
			break
		}
	}

	if rowIndex < 0 {
		return c.AppendRow(ctx, SheetLocations, []string{busID, latS, lngS, speedS, ts, ""})
	}

	cells := map[string]string{"B": latS, "C": lngS, "D": speedS, "E": ts}
	for _, col := range []string{"B", "C", "D", "E"} {
		cell := fmt.Sprintf("%s%d", col, rowIndex)
		if err := c.UpdateCell(ctx, SheetLocations, cell, cells[col]); err != nil {
			return err
		}
	}
	return nil
}

type scriptResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// SubmitRegistration forwards a registration form to the remote script
// endpoint as multipart form data. An OK response with an unparseable body
// is treated as accepted, matching the endpoint's loose contract.
func (c *Client) SubmitRegistration(ctx context.Context, form model.RegistrationForm) error {
	data, err := json.Marshal(form)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("action", "registerStudent")
	_ = mw.WriteField("data", string(data))
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.appsScriptURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: registration endpoint status %s", ErrFetch, resp.Status)
	}

	var result scriptResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil
	}
	if !result.Success && result.Error != "" {
		return errors.New(result.Error)
	}
	return nil
}
