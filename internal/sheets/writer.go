package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/Veraticus/clientdesk/internal/service"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

// RosterHeader is the first row of every roster export.
var RosterHeader = []any{"Name", "Email", "Status", "Experian", "Equifax", "TransUnion", "Pinned"}

// Writer exports the client roster to a spreadsheet.
type Writer struct {
	api    spreadsheetAPI
	logger *slog.Logger
	config Config
}

// NewWriter creates a roster writer backed by the Google Sheets API.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return newWriter(&googleSheets{service: srv}, config, logger), nil
}

func newWriter(api spreadsheetAPI, config Config, logger *slog.Logger) *Writer {
	if config.SheetTitle == "" {
		config.SheetTitle = "Roster"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	return &Writer{
		api:    api,
		config: config,
		logger: common.LoggerOrDefault(logger),
	}
}

// WriteRoster replaces the sheet contents with a header and one row per client.
// It returns the spreadsheet id written to.
func (w *Writer) WriteRoster(ctx context.Context, clients []model.Client) (string, error) {
	w.logger.Info("starting roster export", "clients", len(clients))

	retryOpts := service.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 1
	}

	var spreadsheetID string
	err := common.WithRetry(ctx, func() error {
		id, getErr := w.getOrCreateSpreadsheet(ctx)
		spreadsheetID = id
		return classify(getErr)
	}, retryOpts)
	if err != nil {
		return "", fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	err = common.WithRetry(ctx, func() error {
		return classify(w.api.Clear(ctx, spreadsheetID, w.sheetRange("A:Z")))
	}, retryOpts)
	if err != nil {
		return "", fmt.Errorf("failed to clear sheet: %w", err)
	}

	values := RosterRows(clients)
	for start := 0; start < len(values); start += w.config.BatchSize {
		end := min(start+w.config.BatchSize, len(values))
		batch := values[start:end]
		rng := w.sheetRange(fmt.Sprintf("A%d", start+1))

		err = common.WithRetry(ctx, func() error {
			return classify(w.api.Update(ctx, spreadsheetID, rng, batch))
		}, retryOpts)
		if err != nil {
			return "", fmt.Errorf("failed to write batch starting at row %d: %w", start+1, err)
		}
		w.logger.Debug("wrote batch", "start_row", start+1, "rows", len(batch))
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return classify(w.api.BatchUpdate(ctx, spreadsheetID, formattingRequests(len(RosterHeader))))
		}, retryOpts)
		if err != nil {
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("roster export completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(values))

	return spreadsheetID, nil
}

// RosterRows builds the sheet values: the header, then clients ordered pinned first, then by name.
func RosterRows(clients []model.Client) [][]any {
	sorted := make([]model.Client, len(clients))
	copy(sorted, clients)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IsPinned != sorted[j].IsPinned {
			return sorted[i].IsPinned
		}
		return strings.ToLower(sorted[i].DisplayName()) < strings.ToLower(sorted[j].DisplayName())
	})

	values := make([][]any, 0, len(sorted)+1)
	values = append(values, RosterHeader)
	for _, c := range sorted {
		pinned := "No"
		if c.IsPinned {
			pinned = "Yes"
		}
		values = append(values, []any{
			c.DisplayName(),
			c.Email,
			string(c.Status),
			scoreCell(c.Scores.Experian),
			scoreCell(c.Scores.Equifax),
			scoreCell(c.Scores.TransUnion),
			pinned,
		})
	}
	return values
}

// scoreCell renders an absent score as an empty cell; zero stays zero.
func scoreCell(score *int) any {
	if score == nil {
		return ""
	}
	return *score
}

func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		if err := w.api.Exists(ctx, w.config.SpreadsheetID); err != nil {
			return "", fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return w.config.SpreadsheetID, nil
	}

	id, url, err := w.api.Create(ctx, w.config.SpreadsheetName, w.config.TimeZone, w.config.SheetTitle)
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet", "id", id, "url", url)

	// Later retries reuse the sheet instead of creating another one.
	w.config.SpreadsheetID = id
	return id, nil
}

func (w *Writer) sheetRange(cells string) string {
	return fmt.Sprintf("'%s'!%s", w.config.SheetTitle, cells)
}

// classify marks Sheets API errors as retryable or not for common.WithRetry.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &common.RetryableError{Err: err, Retryable: false}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
		case apiErr.Code >= http.StatusInternalServerError:
			return err
		default:
			return &common.RetryableError{Err: err, Retryable: false}
		}
	}
	return err
}

func formattingRequests(columns int) []*sheets.Request {
	return []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          0,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(columns),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    0,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(columns),
				},
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: 0,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}
}
