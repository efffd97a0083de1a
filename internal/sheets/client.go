package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/pkg/taskboard"
)

// Client wraps the Sheets API for one spreadsheet tab.
type Client struct {
	svc           *sheets.Service
	spreadsheetID string
	tab           string
}

// NewClient builds a Sheets client authenticated with a service account key
// file. The service account needs editor access to the spreadsheet.
func NewClient(ctx context.Context, credentialsFile, spreadsheetID, tab string) (*Client, error) {
	if credentialsFile == "" {
		return nil, fmt.Errorf("credentials file cannot be empty")
	}
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID cannot be empty")
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID, tab: tab}, nil
}

// EnsureHeader writes the column header into row 1 if the tab is empty or the
// header drifted. Idempotent, safe to call on every startup.
func (c *Client) EnsureHeader(ctx context.Context) error {
	readRange := fmt.Sprintf("%s!1:1", c.tab)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read header row: %w", err)
	}

	if len(resp.Values) > 0 && headerMatches(resp.Values[0]) {
		return nil
	}

	row := make([]interface{}, len(Header))
	for i, h := range Header {
		row[i] = h
	}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, readRange, &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}
	return nil
}

func headerMatches(row []interface{}) bool {
	if len(row) < len(Header) {
		return false
	}
	for i, want := range Header {
		if got, _ := row[i].(string); got != want {
			return false
		}
	}
	return true
}

// AppendTask adds a task as a new row at the bottom of the tab.
func (c *Client) AppendTask(ctx context.Context, t *taskboard.Task) error {
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.tab, &sheets.ValueRange{
		Values: [][]interface{}{TaskToRow(t)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append task %s: %w", t.ID, err)
	}
	return nil
}

// UpdateTask rewrites the row holding the given task. Falls back to appending
// when the task has no row yet (created while the mirror was down).
func (c *Client) UpdateTask(ctx context.Context, t *taskboard.Task) error {
	rowIndex, err := c.findRow(ctx, t.ID)
	if err != nil {
		return err
	}
	if rowIndex == 0 {
		return c.AppendTask(ctx, t)
	}

	writeRange := fmt.Sprintf("%s!A%d", c.tab, rowIndex)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, &sheets.ValueRange{
		Values: [][]interface{}{TaskToRow(t)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", t.ID, err)
	}
	return nil
}

// ListTasks reads every data row back as tasks. Malformed rows (humans edit
// this sheet) are skipped rather than failing the whole read.
func (c *Client) ListTasks(ctx context.Context) ([]*taskboard.Task, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.tab).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read task rows: %w", err)
	}

	var tasks []*taskboard.Task
	for i, row := range resp.Values {
		if i == 0 {
			continue // header
		}
		t, err := RowToTask(row)
		if err != nil {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// findRow returns the 1-based sheet row holding the task, or 0 if absent.
func (c *Client) findRow(ctx context.Context, taskID string) (int, error) {
	readRange := fmt.Sprintf("%s!A:A", c.tab)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to scan task ID column: %w", err)
	}

	for i, row := range resp.Values {
		if len(row) > 0 {
			if id, _ := row[0].(string); id == taskID {
				return i + 1, nil
			}
		}
	}
	return 0, nil
}
