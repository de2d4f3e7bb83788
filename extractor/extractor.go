// Package extractor converts uploaded bill documents into plain text.
//
// Input is the browser's base64 data URL; dispatch is on the declared MIME
// type (text/plain, PDF, legacy and modern Word). Extraction is a pure
// transform: failures are terminal input errors and are never retried.
package extractor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"legiscribe-backend/models"
)

var (
	ErrMalformedUpload     = errors.New("uploaded file content could not be decoded")
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

// Extractor converts uploaded documents into plain bill text
type Extractor struct{}

// New creates an Extractor
func New() *Extractor {
	return &Extractor{}
}

// Extract decodes the document payload and returns its plain text content
func (e *Extractor) Extract(doc models.UploadedDocument) (string, error) {
	data, err := DecodePayload(doc.Content)
	if err != nil {
		return "", err
	}

	switch doc.MimeType {
	case models.MimeTypePlainText:
		return string(data), nil
	case models.MimeTypePDF:
		text, err := extractPDF(data)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrMalformedUpload, err)
		}
		return text, nil
	case models.MimeTypeLegacyWord:
		text, err := extractDoc(data)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrMalformedUpload, err)
		}
		return text, nil
	case models.MimeTypeModernWord:
		text, err := extractDocx(data)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrMalformedUpload, err)
		}
		return text, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, doc.MimeType)
	}
}

// DecodePayload extracts and decodes the base64 payload after the data URL
// comma separator
func DecodePayload(content string) ([]byte, error) {
	idx := strings.IndexByte(content, ',')
	if idx < 0 {
		return nil, fmt.Errorf("%w: missing data URL payload", ErrMalformedUpload)
	}

	payload := content[idx+1:]
	if payload == "" {
		return nil, fmt.Errorf("%w: empty data URL payload", ErrMalformedUpload)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 payload", ErrMalformedUpload)
	}

	return data, nil
}
