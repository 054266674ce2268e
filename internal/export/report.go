package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"homeservices/internal/analytics"
	"homeservices/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	BookingsSheet  = "Bookings"
	DashboardSheet = "Dashboard"
)

var bookingColumns = []string{
	"ID", "Service", "Customer", "Provider", "Date", "Time",
	"Amount", "Payment", "Status", "Address", "Phone", "Created At",
}

// statusFills colours a booking row by lifecycle status.
var statusFills = map[models.BookingStatus]string{
	models.StatusPending:    "#FFF2CC",
	models.StatusConfirmed:  "#DDEBF7",
	models.StatusInProgress: "#FCE4D6",
	models.StatusCompleted:  "#E2EFDA",
	models.StatusCancelled:  "#EDEDED",
}

// Report is the input of a bookings workbook.
type Report struct {
	Bookings  []*models.Booking
	Dashboard *analytics.Dashboard
	From, To  string
}

// Build renders the workbook. The caller owns the returned file and must Close it.
func Build(r Report) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(BookingsSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := writeBookings(f, r.Bookings); err != nil {
		f.Close()
		return nil, err
	}
	if r.Dashboard != nil {
		if err := writeDashboard(f, r); err != nil {
			f.Close()
			return nil, err
		}
	}

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

// Write streams the workbook to w.
func Write(w io.Writer, r Report) error {
	f, err := Build(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// Save stores the workbook under dir and returns its path.
func Save(dir string, r Report, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := Build(r)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, FileName(at))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

func FileName(at time.Time) string {
	return fmt.Sprintf("bookings_%s.xlsx", at.Format("20060102_150405"))
}

func writeBookings(f *excelize.File, bookings []*models.Booking) error {
	header, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}

	for i, title := range bookingColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(BookingsSheet, cell, title)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(bookingColumns))
	_ = f.SetCellStyle(BookingsSheet, "A1", lastCol+"1", header)

	styles := make(map[models.BookingStatus]int, len(statusFills))
	for status, color := range statusFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("error creating style: %w", err)
		}
		styles[status] = id
	}

	for i, b := range bookings {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{
			b.ID,
			serviceLabel(b),
			b.CustomerID,
			b.ProviderID,
			b.ServiceDate,
			b.ServiceTime,
			b.TotalAmount,
			string(b.PaymentStatus),
			string(b.Status),
			b.CustomerAddress,
			b.CustomerPhone,
			b.CreatedAt.Format("2006-01-02 15:04"),
		}
		if err := f.SetSheetRow(BookingsSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
		if style, ok := styles[b.Status]; ok {
			_ = f.SetCellStyle(BookingsSheet, cell, fmt.Sprintf("%s%d", lastCol, row), style)
		}
	}

	_ = f.SetColWidth(BookingsSheet, "A", "A", 38)
	_ = f.SetColWidth(BookingsSheet, "B", lastCol, 18)
	_ = f.SetPanes(BookingsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return nil
}

func writeDashboard(f *excelize.File, r Report) error {
	if _, err := f.NewSheet(DashboardSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	d := r.Dashboard

	period := "all time"
	if r.From != "" || r.To != "" {
		period = fmt.Sprintf("%s - %s", r.From, r.To)
	}

	rows := [][]interface{}{
		{"Period", period},
		{"Generated at", d.GeneratedAt.Format("2006-01-02 15:04")},
		{"Total revenue", d.TotalRevenue},
		{"Month revenue", d.MonthRevenue},
		{"Revenue growth %", d.RevenueGrowth},
		{"Total bookings", d.TotalBookings},
		{"Month bookings", d.MonthBookings},
		{"Booking growth %", d.BookingGrowth},
		{"Customers", d.TotalCustomers},
		{"Providers", d.TotalProviders},
		{"Pending providers", d.PendingProviders},
		{"Active services", d.ActiveServices},
		{"Pending services", d.PendingServices},
		{"Completion rate %", d.CompletionRate},
		{"Average rating", d.AverageRating},
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(DashboardSheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("error writing dashboard: %w", err)
		}
	}

	next := len(rows) + 2
	_ = f.SetCellValue(DashboardSheet, fmt.Sprintf("A%d", next), "Status")
	_ = f.SetCellValue(DashboardSheet, fmt.Sprintf("B%d", next), "Count")
	_ = f.SetCellValue(DashboardSheet, fmt.Sprintf("C%d", next), "%")
	for i, s := range d.StatusDistribution {
		row := []interface{}{string(s.Status), s.Count, s.Percent}
		cell, _ := excelize.CoordinatesToCellName(1, next+1+i)
		_ = f.SetSheetRow(DashboardSheet, cell, &row)
	}

	next += len(d.StatusDistribution) + 2
	_ = f.SetCellValue(DashboardSheet, fmt.Sprintf("A%d", next), "Top services")
	_ = f.SetCellValue(DashboardSheet, fmt.Sprintf("B%d", next), "Revenue")
	_ = f.SetCellValue(DashboardSheet, fmt.Sprintf("C%d", next), "Bookings")
	for i, s := range d.TopServices {
		row := []interface{}{s.Name, s.Revenue, s.Bookings}
		cell, _ := excelize.CoordinatesToCellName(1, next+1+i)
		_ = f.SetSheetRow(DashboardSheet, cell, &row)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetCellStyle(DashboardSheet, "A1", fmt.Sprintf("A%d", len(rows)), bold)
	}
	_ = f.SetColWidth(DashboardSheet, "A", "A", 24)
	_ = f.SetColWidth(DashboardSheet, "B", "C", 16)
	return nil
}

func serviceLabel(b *models.Booking) string {
	if b.ServiceTitle != "" {
		return b.ServiceTitle
	}
	return b.ServiceID
}
