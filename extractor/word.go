package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
)

// extractDocx parses a .docx archive by reading word/document.xml and
// joining paragraph text, one paragraph per line.
func extractDocx(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var sb strings.Builder
	var currentText strings.Builder
	var inParagraph bool

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "p" {
				inParagraph = true
				currentText.Reset()
			}

		case xml.CharData:
			if inParagraph {
				currentText.Write(t)
			}

		case xml.EndElement:
			if t.Name.Local == "p" && inParagraph {
				inParagraph = false
				text := strings.TrimSpace(currentText.String())
				if text == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(text)
			}
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content found in document")
	}

	return sb.String(), nil
}

// extractDoc pulls text out of a legacy .doc OLE compound file. The
// WordDocument stream mixes text with binary piece tables, so printable
// runs are salvaged rather than the format fully parsed.
func extractDoc(data []byte) (string, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open compound file: %w", err)
	}

	var stream []byte
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name != "WordDocument" {
			continue
		}
		stream, err = io.ReadAll(entry)
		if err != nil {
			return "", fmt.Errorf("read WordDocument stream: %w", err)
		}
		break
	}
	if stream == nil {
		return "", fmt.Errorf("WordDocument stream not found")
	}

	text := salvagePrintableRuns(stream)
	if text == "" {
		return "", fmt.Errorf("no text content found in document")
	}

	return text, nil
}

// salvagePrintableRuns collects runs of printable characters of meaningful
// length, discarding the binary structures interleaved in the stream.
// Word stores paragraph marks as \r.
func salvagePrintableRuns(stream []byte) string {
	const minRun = 4

	var sb strings.Builder
	var run []byte

	flush := func() {
		if len(run) >= minRun {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.Write(run)
		}
		run = run[:0]
	}

	for _, b := range stream {
		switch {
		case b >= 0x20 && b < 0x7f:
			run = append(run, b)
		case b == '\r':
			flush()
		case b == '\t':
			run = append(run, ' ')
		default:
			flush()
		}
	}
	flush()

	return strings.TrimSpace(sb.String())
}
