// Package audit exports booking reports for back-office review.
package audit

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"costamar/internal/models"
)

var reportColumns = []string{
	"ID", "Reference", "Category", "Check-in", "Check-out",
	"Instances", "Guests", "Payment", "Total", "Status", "Created",
}

// ExportBookings writes an .xlsx report of the given bookings, one sheet
// per category, to w.
func ExportBookings(w io.Writer, bookings []models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	byCategory := map[models.ResourceCategory][]models.Booking{}
	order := []models.ResourceCategory{}
	for _, b := range bookings {
		if _, seen := byCategory[b.Category]; !seen {
			order = append(order, b.Category)
		}
		byCategory[b.Category] = append(byCategory[b.Category], b)
	}
	if len(order) == 0 {
		order = []models.ResourceCategory{models.CategoryRoom}
	}

	for i, category := range order {
		sheet := sheetName(category)
		if i == 0 {
			f.SetSheetName("Sheet1", sheet)
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return fmt.Errorf("create sheet %s: %w", sheet, err)
			}
		}
		if err := writeSheet(f, sheet, byCategory[category]); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, bookings []models.Booking) error {
	for i, col := range reportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(reportColumns), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}

	for row, b := range bookings {
		guestCount := b.GuestCount
		if guestCount == 0 {
			for _, alloc := range b.Guests {
				guestCount += alloc.Adults + alloc.Children
			}
		}
		values := []any{
			b.ID,
			b.Reference,
			string(b.Category),
			models.DateKey(b.CheckIn),
			models.DateKey(b.CheckOut),
			strings.Join(b.InstanceIDs, ", "),
			guestCount,
			b.PaymentMode,
			b.TotalCost,
			b.Status,
			b.CreatedAt.Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func sheetName(category models.ResourceCategory) string {
	switch category {
	case models.CategoryRoom:
		return "Rooms"
	case models.CategoryCottage:
		return "Cottages"
	case models.CategoryFunctionHall:
		return "Function Halls"
	default:
		return "Bookings"
	}
}
