package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nikhilbhutani/fiscalassistant/pkg/textextract"
)

var ErrNoTextLayer = errors.New("pdf has no text layer")

// Recognizer turns a stored blob into plain text.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, contentType, filename string) (string, error)
}

type ImageOCR interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// TextRecognizer reads the text layer of PDF, Office and plain text files and sends
// images through OCR.
type TextRecognizer struct {
	ocr ImageOCR
}

func NewTextRecognizer(ocr ImageOCR) *TextRecognizer {
	return &TextRecognizer{ocr: ocr}
}

func (r *TextRecognizer) Recognize(ctx context.Context, data []byte, contentType, filename string) (string, error) {
	kind := textextract.Kind(contentType)
	if kind == "" {
		kind = textextract.Kind(filepath.Ext(filename))
	}

	switch kind {
	case "image":
		if r.ocr == nil {
			return "", fmt.Errorf("no OCR engine configured for %s", filename)
		}
		return r.ocr.ExtractText(ctx, data)
	case "pdf", "docx", "xlsx", "txt":
		result, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), kind)
		if err != nil {
			return "", err
		}
		if kind == "pdf" && strings.TrimSpace(result.Content) == "" {
			return "", ErrNoTextLayer
		}
		return result.Content, nil
	default:
		return "", fmt.Errorf("%w: %q (%s)", textextract.ErrUnsupported, contentType, filename)
	}
}
