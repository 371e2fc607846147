package invoicing

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Factures"

var exportHeader = []string{
	"Numéro",
	"Patient",
	"Date d'émission",
	"Date d'échéance",
	"Montant HT",
	"TVA (%)",
	"Montant TTC",
	"Prise en charge",
	"Reste à charge",
	"Statut",
	"Date de paiement",
}

var exportWidths = []float64{18, 28, 16, 16, 14, 10, 14, 16, 16, 12, 16}

// exportWorkbook writes one row per invoice below a styled header.
func exportWorkbook(views []*View) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := writeRow(f, 1, toAny(exportHeader)); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
	if err := f.SetCellStyle(exportSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("set header style: %w", err)
	}

	for i, v := range views {
		if err := writeRow(f, i+2, exportRow(v)); err != nil {
			return nil, err
		}
	}

	for i, w := range exportWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(exportSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func exportRow(v *View) []any {
	patientName := v.PatientID.String()
	if v.Patient != nil {
		patientName = v.Patient.Nom + " " + v.Patient.Prenom
	}
	paidOn := ""
	if v.DatePaiement != nil {
		paidOn = v.DatePaiement.String()
	}
	return []any{
		v.NumeroFacture,
		patientName,
		v.DateEmission.String(),
		v.DateEcheance.String(),
		v.MontantHT,
		v.TauxTVA,
		v.MontantTTC,
		v.MontantPriseEnCharge,
		v.ResteACharge,
		v.Statut,
		paidOn,
	}
}

func writeRow(f *excelize.File, row int, values []any) error {
	for col, val := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(exportSheet, cell, val); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
