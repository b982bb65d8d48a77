package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendscan/internal/core"
	ports "spendscan/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	summarySheet  string
}

// Ensure interface conformance
var (
	_ ports.SummaryWriter  = (*Client)(nil)
	_ ports.CategoryWriter = (*Client)(nil)
)

// Options configures the exporter target.
type Options struct {
	SpreadsheetID string
	// SheetName is the tab the summaries are written to. Defaults to "Summary".
	SheetName string
	// ServiceAccountJSON and ServiceAccountFile supply credentials
	// inline or by path. When both are empty the standard
	// GOOGLE_APPLICATION_CREDENTIALS variable is consulted.
	ServiceAccountJSON string
	ServiceAccountFile string
}

// New creates a Sheets exporter for the given spreadsheet.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}

	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = "Summary"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		summarySheet:  sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(opts.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(opts.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// WriteMonthlySummaries replaces columns A:C of the summary sheet with
// the monthly spending overview. Totals are written as exact decimal
// strings so the sheet never sees a float rounding artifact.
func (c *Client) WriteMonthlySummaries(ctx context.Context, summaries []core.MonthlySummary) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rows := [][]any{{"Month", "Total", "Transactions"}}
	for _, s := range summaries {
		rows = append(rows, []any{s.Month, s.Total.String(), s.Count})
	}

	return c.replaceRange(ctx, "A", "C", rows)
}

// WriteCategoryTotals replaces columns E:F of the summary sheet with the
// per-category breakdown.
func (c *Client) WriteCategoryTotals(ctx context.Context, totals []core.CategoryTotal) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rows := [][]any{{"Category", "Total"}}
	for _, t := range totals {
		rows = append(rows, []any{t.Category.Display(), t.Total.String()})
	}

	return c.replaceRange(ctx, "E", "F", rows)
}

// replaceRange clears the target columns and writes rows from the top.
// Summaries supersede each other wholesale, so a clear-then-update is
// the whole protocol.
func (c *Client) replaceRange(ctx context.Context, fromCol, toCol string, rows [][]any) (string, error) {
	clearRange := fmt.Sprintf("%s!%s:%s", c.summarySheet, fromCol, toCol)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	dataRange := fmt.Sprintf("%s!%s1:%s%d", c.summarySheet, fromCol, toCol, len(rows))
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("update %s: %w", dataRange, err)
	}

	return dataRange, nil
}
