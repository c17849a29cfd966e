package sheets

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Client wraps the Google Sheets values API for reading and writing ranges.
type Client struct {
	svc    *sheets.Service
	logger zerolog.Logger
}

// NewClient builds a Sheets client authenticated with a service account key
// file.
func NewClient(ctx context.Context, serviceAccountFile string, logger zerolog.Logger) (*Client, error) {
	data, err := os.ReadFile(serviceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account file: %w", err)
	}

	cfg, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return &Client{
		svc:    svc,
		logger: logger.With().Str("component", "sheets").Logger(),
	}, nil
}

// GetRange reads the cell values of an A1 range.
func (c *Client) GetRange(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// UpdateRange overwrites the cells of an A1 range with the given values.
func (c *Client) UpdateRange(ctx context.Context, spreadsheetID, writeRange string, values [][]interface{}) error {
	body := &sheets.ValueRange{Values: values}
	_, err := c.svc.Spreadsheets.Values.Update(spreadsheetID, writeRange, body).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}

	c.logger.Debug().Str("range", writeRange).Msg("range updated")
	return nil
}
