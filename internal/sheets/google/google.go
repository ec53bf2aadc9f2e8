package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"costdash/internal/ingest"
	ports "costdash/internal/sheets"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client reads the cost sheet of one spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	cellRange     string
}

// Ensure interface conformance
var (
	_ ports.CostReader = (*Client)(nil)
	_ ports.Describer  = (*Client)(nil)
)

// Config selects the sheet to read.
type Config struct {
	SpreadsheetID string
	SheetName     string // default "Costs"
	Range         string // default "A:Z"
}

func (c Config) withDefaults() Config {
	c.SpreadsheetID = strings.TrimSpace(c.SpreadsheetID)
	c.SheetName = strings.TrimSpace(c.SheetName)
	c.Range = strings.TrimSpace(c.Range)
	if c.SheetName == "" {
		c.SheetName = "Costs"
	}
	if c.Range == "" {
		c.Range = "A:Z"
	}
	return c
}

// NewFromEnv creates a Sheets client using environment variables and
// service account credentials.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SHEET_NAME (default "Costs"), GOOGLE_SHEET_RANGE (default "A:Z")
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Config{
		SpreadsheetID: os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetName:     os.Getenv("GOOGLE_SHEET_NAME"),
		Range:         os.Getenv("GOOGLE_SHEET_RANGE"),
	})
}

// New creates a client authenticated with service account credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		cellRange:     cfg.Range,
	}
}

// newSheetsService initializes a read-only Sheets Service using Service
// Account credentials from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	creds, err := googleoauth.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	// The token source refreshes over the pooled transport too
	base := newHTTPClientWithPooling()
	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), creds.TokenSource)
	client.Timeout = base.Timeout

	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// bounded timeouts and keep-alive connection reuse.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// ReadCosts reads the configured range with unformatted values so dates
// arrive as serial numbers and amounts as plain numbers.
func (c *Client) ReadCosts(ctx context.Context) (ingest.Dataset, error) {
	if c.svc == nil {
		return ingest.Dataset{}, errors.New("sheets service not initialized")
	}
	rng := c.a1Range()
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).Do()
	if err != nil {
		return ingest.Dataset{}, fmt.Errorf("read %s: %w", rng, err)
	}
	ds, err := ingest.ParseTable(ingest.ValuesToRows(resp.Values))
	if err != nil {
		return ingest.Dataset{}, fmt.Errorf("parse %s: %w", rng, err)
	}
	slog.InfoContext(ctx, "Read cost sheet",
		"range", rng,
		"records", len(ds.Records),
		"skipped_dates", ds.SkippedDates,
		"skipped_amounts", ds.SkippedAmounts)
	return ds, nil
}

// Describe names the sheet for upload metadata.
func (c *Client) Describe() string {
	return "sheets:" + c.spreadsheetID + "/" + c.sheetName
}

func (c *Client) a1Range() string {
	name := c.sheetName
	if strings.ContainsAny(name, " '!") {
		name = "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name + "!" + c.cellRange
}
