// Package importer turns uploaded documents into candidate vocabulary and adds
// them to the word list with AI-filled details.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/richardlehane/mscfb"
	"github.com/xuri/excelize/v2"
	"rsc.io/pdf"
)

// ErrUnsupportedFormat is returned for extensions other than pdf, txt, csv,
// xlsx and xls
var ErrUnsupportedFormat = errors.New("unsupported file format")

// SupportedExtensions lists the file types ExtractText understands
var SupportedExtensions = []string{".pdf", ".txt", ".csv", ".xlsx", ".xls"}

// Supported reports whether name has an extension ExtractText can read
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ExtractFile reads a file from disk and returns its raw text
func ExtractFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return ExtractText(filepath.Base(path), data)
}

// ExtractText returns the raw text of a document; name is only used for its
// extension
func ExtractText(name string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return pdfText(data)
	case ".txt":
		return string(data), nil
	case ".csv":
		return csvText(data)
	case ".xlsx":
		return spreadsheetText(data)
	case ".xls":
		// some tools save OOXML workbooks with the old extension
		if bytes.HasPrefix(data, zipMagic) {
			return spreadsheetText(data)
		}
		return legacySpreadsheetText(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

var zipMagic = []byte("PK\x03\x04")

// BIFF8 sheet limits
const (
	maxLegacyRows = 1 << 16
	biffColumns   = 256
)

func pdfText(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		var prev *pdf.Text
		for _, t := range page.Content().Text {
			t := t
			if prev != nil && (t.Y != prev.Y || t.X > prev.X+prev.W+t.FontSize*0.15) {
				b.WriteByte(' ')
			}
			b.WriteString(t.S)
			prev = &t
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func csvText(data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var b strings.Builder
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("error reading CSV: %w", err)
		}
		b.WriteString(strings.Join(row, " "))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func spreadsheetText(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("failed to get rows of %s: %w", sheet, err)
		}
		for _, row := range rows {
			b.WriteString(strings.Join(row, " "))
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

func legacySpreadsheetText(data []byte) (text string, err error) {
	if err := checkCompoundFile(data); err != nil {
		return "", fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read spreadsheet: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return "", fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	if wb == nil {
		return "", errors.New("failed to open spreadsheet: no workbook stream")
	}

	var b strings.Builder
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		for r := 0; r <= int(sheet.MaxRow) && r < maxLegacyRows; r++ {
			row := legacyRow(sheet, r)
			if row == nil {
				continue
			}
			var cells []string
			for c := 0; c < biffColumns; c++ {
				if cell := strings.TrimSpace(row.Col(c)); cell != "" {
					cells = append(cells, cell)
				}
			}
			if len(cells) == 0 {
				continue
			}
			b.WriteString(strings.Join(cells, " "))
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// legacyRow returns nil for rows without cells; the reader panics on them.
func legacyRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// checkCompoundFile walks the OLE2 container and reads the workbook stream
// end to end. The BIFF reader exits the process on a broken sector chain, so
// it only sees files that pass here.
func checkCompoundFile(data []byte) error {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return err
	}
	for {
		entry, err := doc.Next()
		if err == io.EOF {
			return errors.New("no workbook stream")
		}
		if err != nil {
			return err
		}
		if entry.Name != "Workbook" && entry.Name != "Book" {
			continue
		}
		if _, err := io.Copy(io.Discard, entry); err != nil {
			return fmt.Errorf("broken workbook stream: %w", err)
		}
		return nil
	}
}
