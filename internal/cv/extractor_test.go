package cv

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeObjects struct {
	data   string
	err    error
	bucket string
	key    string
}

func (f *fakeObjects) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.bucket, f.key = bucket, key
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.data)), nil
}

func docxFixture(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString("<w:p><w:r><w:t>" + p + "</w:t></w:r></w:p>")
	}

	files := map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml":            `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body.String() + `</w:body></w:document>`,
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

// pdfFixture builds a Helvetica PDF with one text line per page. Object
// offsets are recorded while writing so the xref table stays exact.
func pdfFixture(t *testing.T, pages ...string) []byte {
	t.Helper()

	const firstPage = 4
	fontObj := firstPage + 2*len(pages)

	kids := make([]string, 0, len(pages))
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", firstPage+2*i))
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Producer (ats-scorer tests) >>",
	}
	for i, line := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", line)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontObj, firstPage+2*i+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, offset := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offset)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 3 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

func TestExtractHTTP(t *testing.T) {
	docx := docxFixture(t, "Payments operations lead", "Santiago &amp; remote")
	cvPDF := pdfFixture(t, "Payments operations lead", "Santiago, Chile")

	mux := http.NewServeMux()
	mux.HandleFunc("/missing.pdf", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	mux.HandleFunc("/cv.txt", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("  Line one\n\n\r\nLine two\n"))
	})
	mux.HandleFunc("/cv.docx", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", docxMIMEType)
		_, _ = w.Write(docx)
	})
	mux.HandleFunc("/cv.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(cvPDF)
	})
	mux.HandleFunc("/mislabeled.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(cvPDF)
	})
	mux.HandleFunc("/mislabeled-broken.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("%PDF-1.4 \x00\x01 binary"))
	})
	mux.HandleFunc("/broken.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 not really a pdf"))
	})
	mux.HandleFunc("/image.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	extractor := New(zap.NewNop(), WithTimeout(2*time.Second))

	t.Run("non success status", func(t *testing.T) {
		_, err := extractor.Extract(context.Background(), server.URL+"/missing.pdf")
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			t.Fatalf("expected fetch error, got %v", err)
		}
		if fetchErr.StatusCode != http.StatusNotFound || !strings.Contains(fetchErr.Status, "404") {
			t.Fatalf("unexpected fetch error %+v", fetchErr)
		}
	})

	t.Run("plain text collapses newline runs", func(t *testing.T) {
		got, err := extractor.Extract(context.Background(), server.URL+"/cv.txt")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "Line one Line two" {
			t.Fatalf("unexpected text %q", got)
		}
	})

	t.Run("docx", func(t *testing.T) {
		got, err := extractor.Extract(context.Background(), server.URL+"/cv.docx")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "Payments operations lead Santiago & remote" {
			t.Fatalf("unexpected text %q", got)
		}
	})

	t.Run("pdf pages are joined and collapsed", func(t *testing.T) {
		got, err := extractor.Extract(context.Background(), server.URL+"/cv.pdf")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "Payments operations lead Santiago, Chile" {
			t.Fatalf("unexpected text %q", got)
		}
	})

	t.Run("pdf bytes win over a text content type", func(t *testing.T) {
		got, err := extractor.Extract(context.Background(), server.URL+"/mislabeled.pdf")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "Payments operations lead Santiago, Chile" {
			t.Fatalf("unexpected text %q", got)
		}

		if _, err := extractor.Extract(context.Background(), server.URL+"/mislabeled-broken.pdf"); !errors.Is(err, ErrUnreadableDocument) {
			t.Fatalf("expected unreadable document, got %v", err)
		}
	})

	t.Run("broken pdf", func(t *testing.T) {
		if _, err := extractor.Extract(context.Background(), server.URL+"/broken.pdf"); !errors.Is(err, ErrUnreadableDocument) {
			t.Fatalf("expected unreadable document, got %v", err)
		}
	})

	t.Run("not a document", func(t *testing.T) {
		if _, err := extractor.Extract(context.Background(), server.URL+"/image.png"); !errors.Is(err, ErrUnreadableDocument) {
			t.Fatalf("expected unreadable document, got %v", err)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := extractor.Extract(ctx, server.URL+"/cv.txt"); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancellation, got %v", err)
		}
	})
}

func TestExtractSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(bytes.Repeat([]byte("a"), 64))
	}))
	defer server.Close()

	extractor := New(nil, WithMaxBytes(32))
	if _, err := extractor.Extract(context.Background(), server.URL); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected size limit error, got %v", err)
	}
}

func TestExtractS3(t *testing.T) {
	objects := &fakeObjects{data: "Risk analyst\nFive years"}
	extractor := New(zap.NewNop(), WithObjectGetter(objects))

	got, err := extractor.Extract(context.Background(), "s3://cvs/2024/ana.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Risk analyst Five years" {
		t.Fatalf("unexpected text %q", got)
	}
	if objects.bucket != "cvs" || objects.key != "2024/ana.txt" {
		t.Fatalf("unexpected object address %s/%s", objects.bucket, objects.key)
	}
}

func TestExtractUnsupportedScheme(t *testing.T) {
	extractor := New(zap.NewNop())

	for _, url := range []string{"ftp://host/cv.pdf", "s3://bucket/cv.pdf", "mailto:hr@example.com"} {
		if _, err := extractor.Extract(context.Background(), url); !errors.Is(err, ErrUnsupportedScheme) {
			t.Fatalf("%s: expected unsupported scheme, got %v", url, err)
		}
	}
}
