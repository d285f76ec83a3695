package cv

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const docxMIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var (
	pdfMagic = []byte("%PDF")
	zipMagic = []byte("PK\x03\x04")

	docxParagraphEnd = regexp.MustCompile(`</w:p>`)
	xmlTags          = regexp.MustCompile(`<[^>]+>`)
)

// parseDocument trusts magic bytes over the declared content type, then
// falls back to the header or sniffed type. Unknown content is handed to the
// PDF parser.
func parseDocument(data []byte, contentType string) (string, error) {
	switch {
	case bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic):
		return extractPDF(data)
	case bytes.HasPrefix(data, zipMagic):
		return extractDOCX(data)
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	switch {
	case strings.HasPrefix(contentType, docxMIMEType):
		return extractDOCX(data)
	case strings.HasPrefix(contentType, "text/plain"):
		return string(data), nil
	default:
		return extractPDF(data)
	}
}

func extractPDF(data []byte) (text string, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic) {
		return "", fmt.Errorf("%w: not a pdf document", ErrUnreadableDocument)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadableDocument, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(pageText)
	}

	return builder.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}
	defer doc.Close()

	content := docxParagraphEnd.ReplaceAllString(doc.Editable().GetContent(), "\n")
	return html.UnescapeString(xmlTags.ReplaceAllString(content, "")), nil
}
