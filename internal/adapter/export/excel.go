// Package export writes registered receipts to spreadsheets for the accounting team.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ibrahimkeyboad/receiptbot/internal/core/domain"
)

const (
	SheetName   = "Comprobantes"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	timeLayout  = "2006-01-02 15:04:05"
)

var header = []any{
	"Documento", "Fecha de pago", "Valor", "Remitente", "Beneficiario",
	"Banco", "Tipo", "Servicio", "Teléfono", "Registrado",
}

// WriteReceipts writes one row per receipt, after a header row, as an xlsx workbook.
func WriteReceipts(w io.Writer, receipts []domain.Receipt) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, rec := range receipts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			rec.Document,
			rec.PaidAt.Format(timeLayout),
			rec.Amount.InexactFloat64(),
			rec.Sender,
			rec.Beneficiary,
			rec.Bank,
			string(rec.PaymentType),
			rec.Service,
			rec.ContactPhone,
			rec.CreatedAt.Format(timeLayout),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write receipt %s: %w", rec.Document, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "J", 18); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
