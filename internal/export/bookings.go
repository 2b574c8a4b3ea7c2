// Package export renders booking reports as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"rentacar/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	BookingSheet = "Bookings"
	SummarySheet = "Summary"
)

var bookingHeaders = []string{
	"ID", "Created", "Customer", "Email", "Phone", "Car", "Pick-up", "Return",
	"Days", "Driver", "Subtotal", "Driver fee", "Total", "Status", "Payment", "Notes",
}

// FileName is the download name of a report generated at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("bookings_%s.xlsx", t.Format("2006-01-02_150405"))
}

// WriteBookings writes a workbook with one row per booking and a summary
// sheet of counts per status.
func WriteBookings(w io.Writer, bookings []*models.Booking, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", BookingSheet); err != nil {
		return fmt.Errorf("error renaming sheet: %w", err)
	}

	header, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	money, _ := f.NewStyle(&excelize.Style{NumFmt: 3})

	for i, h := range bookingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(BookingSheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(bookingHeaders), 1)
	_ = f.SetCellStyle(BookingSheet, "A1", last, header)

	var stats models.BookingStats
	for i, b := range bookings {
		row := i + 2
		stats.Add(b.Status, b.TotalPrice)
		values := bookingRow(b)
		if err := f.SetSheetRow(BookingSheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
		_ = f.SetCellStyle(BookingSheet, fmt.Sprintf("K%d", row), fmt.Sprintf("M%d", row), money)
	}

	_ = f.SetColWidth(BookingSheet, "A", "A", 8)
	_ = f.SetColWidth(BookingSheet, "B", "H", 18)
	_ = f.SetColWidth(BookingSheet, "I", "O", 12)
	_ = f.SetColWidth(BookingSheet, "P", "P", 30)
	_ = f.SetPanes(BookingSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if err := writeSummary(f, stats, generatedAt, header); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func bookingRow(b *models.Booking) []interface{} {
	var customer, email, phone, car string
	if b.User != nil {
		customer, email, phone = b.User.Name, b.User.Email, b.User.Phone
	}
	if b.Car != nil {
		car = b.Car.Brand + " " + b.Car.Name
	}
	driver := "no"
	if b.WithDriver {
		driver = "yes"
	}
	return []interface{}{
		b.ID,
		b.CreatedAt.Format("2006-01-02 15:04"),
		customer,
		email,
		phone,
		car,
		b.StartDate.Format(models.DateLayout),
		b.EndDate.Format(models.DateLayout),
		b.Days,
		driver,
		b.Subtotal,
		b.DriverFee,
		b.TotalPrice,
		string(b.Status),
		string(b.PaymentStatus),
		b.Notes,
	}
}

func writeSummary(f *excelize.File, stats models.BookingStats, generatedAt time.Time, header int) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	rows := [][]interface{}{
		{"Generated", generatedAt.Format("2006-01-02 15:04")},
		{"Total bookings", stats.Total},
		{"Pending", stats.Pending},
		{"Confirmed", stats.Confirmed},
		{"Completed", stats.Completed},
		{"Cancelled", stats.Cancelled},
		{"Revenue", stats.Revenue},
	}
	for i, row := range rows {
		if err := f.SetSheetRow(SummarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return fmt.Errorf("error writing summary: %w", err)
		}
	}
	_ = f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(rows)), header)
	_ = f.SetColWidth(SummarySheet, "A", "B", 20)
	return nil
}
