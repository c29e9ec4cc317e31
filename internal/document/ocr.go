package document

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// OCRService shells out to the tesseract CLI, feeding the image on stdin.
type OCRService struct {
	tesseractPath string
	language      string
}

func NewOCRService(tesseractPath, language string) *OCRService {
	if tesseractPath == "" {
		tesseractPath, _ = exec.LookPath("tesseract")
		if tesseractPath == "" {
			tesseractPath = "tesseract"
		}
	}
	if language == "" {
		language = "eng"
	}
	return &OCRService{tesseractPath: tesseractPath, language: language}
}

func (o *OCRService) IsAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, o.tesseractPath, "--version")
	return cmd.Run() == nil
}

func (o *OCRService) ExtractText(ctx context.Context, image []byte) (string, error) {
	cmd := exec.CommandContext(ctx, o.tesseractPath, "stdin", "stdout", "-l", o.language)
	cmd.Stdin = bytes.NewReader(image)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(string(output)), nil
}
