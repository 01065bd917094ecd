package notify

import (
	"context"
	"fmt"
	"os"

	"garagebook/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const bookingsRange = "Bookings!A:A"

// SheetsAppender mirrors new bookings into a Google spreadsheet.
type SheetsAppender struct {
	service       *sheets.Service
	spreadsheetID string
}

// NewSheetsAppender authenticates with a service account credentials file.
func NewSheetsAppender(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsAppender, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return &SheetsAppender{service: srv, spreadsheetID: spreadsheetID}, nil
}

// TestConnection reads the header cell of the bookings sheet.
func (s *SheetsAppender) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, "Bookings!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

func (s *SheetsAppender) AppendBooking(ctx context.Context, b *models.Booking) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(b)},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, bookingsRange, valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append booking %s: %w", b.ID, err)
	}
	return nil
}

func bookingRowValues(b *models.Booking) []interface{} {
	return []interface{}{
		b.ID,
		b.Name,
		b.Email,
		b.Phone,
		b.Service,
		b.Date,
		b.CarModel,
		b.Message,
		b.Status,
		b.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
