package textextract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupported is returned for formats without a text layer reader.
var ErrUnsupported = errors.New("unsupported file type")

type ExtractedText struct {
	Content  string
	Pages    int
	Metadata map[string]string
}

// Extract reads the text layer of a document. fileType may be an extension
// (".pdf", "pdf") or a MIME type.
func Extract(data io.ReaderAt, size int64, fileType string) (*ExtractedText, error) {
	switch Kind(fileType) {
	case "pdf":
		return extractPDF(data, size)
	case "docx":
		return extractDOCX(data, size)
	case "txt":
		return extractTXT(data, size)
	case "xlsx":
		return extractXLSX(data, size)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, fileType)
	}
}

// Kind normalises an extension or MIME type to "pdf", "docx", "xlsx", "txt",
// "image" or "" when unknown.
func Kind(fileType string) string {
	ft := strings.ToLower(strings.TrimSpace(fileType))
	if i := strings.Index(ft, ";"); i >= 0 {
		ft = strings.TrimSpace(ft[:i])
	}
	switch ft {
	case ".pdf", "pdf", "application/pdf":
		return "pdf"
	case ".docx", "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case ".xlsx", "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx"
	case ".txt", "txt", ".csv", "csv", "text/plain", "text/csv":
		return "txt"
	case ".png", "png", ".jpg", "jpg", ".jpeg", "jpeg", ".tif", "tif", ".tiff", "tiff", ".bmp", "bmp", ".webp", "webp":
		return "image"
	}
	if strings.HasPrefix(ft, "image/") {
		return "image"
	}
	return ""
}

func SupportedTypes() []string {
	return []string{".pdf", ".docx", ".xlsx", ".txt", ".csv"}
}

func extractPDF(data io.ReaderAt, size int64) (*ExtractedText, error) {
	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	return &ExtractedText{
		Content: strings.TrimSpace(buf.String()),
		Pages:   numPages,
		Metadata: map[string]string{
			"type": "pdf",
		},
	}, nil
}

func extractDOCX(data io.ReaderAt, size int64) (*ExtractedText, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	var content []byte
	for _, f := range reader.File {
		if f.Name != "word/document.xml" && filepath.Base(f.Name) != "document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		content, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		break
	}

	return &ExtractedText{
		Content: stripXMLTags(string(content)),
		Pages:   1,
		Metadata: map[string]string{
			"type": "docx",
		},
	}, nil
}

func extractTXT(data io.ReaderAt, size int64) (*ExtractedText, error) {
	buf, err := io.ReadAll(io.NewSectionReader(data, 0, size))
	if err != nil {
		return nil, fmt.Errorf("read TXT: %w", err)
	}

	return &ExtractedText{
		Content: string(bytes.TrimSpace(buf)),
		Pages:   1,
		Metadata: map[string]string{
			"type": "txt",
		},
	}, nil
}

// extractXLSX flattens every sheet to tab separated lines, one per row.
func extractXLSX(data io.ReaderAt, size int64) (*ExtractedText, error) {
	f, err := excelize.OpenReader(io.NewSectionReader(data, 0, size))
	if err != nil {
		return nil, fmt.Errorf("open XLSX: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		buf.WriteString(sheet)
		buf.WriteString("\n")
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}

	return &ExtractedText{
		Content: strings.TrimSpace(buf.String()),
		Pages:   len(sheets),
		Metadata: map[string]string{
			"type": "xlsx",
		},
	}, nil
}

func stripXMLTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}
