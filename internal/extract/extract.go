package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	MimePDF   = "application/pdf"
	MimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePlain = "text/plain"
)

// MaxTextBytes caps the text taken from one file. PDF and DOCX content is
// compressed and can expand far beyond the upload size.
const MaxTextBytes = 16 << 20

// maxDocumentXMLBytes caps word/document.xml, which carries markup around
// every text run.
var maxDocumentXMLBytes int64 = 4 * MaxTextBytes

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNoText          = errors.New("no extractable text")
	ErrTooLarge        = errors.New("extracted text exceeds size limit")
)

// Text extracts plain text from an uploaded file. The type is taken from
// contentType, falling back to the filename extension when the client sent
// a generic type.
func Text(ctx context.Context, data []byte, contentType, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch mime := DetectType(contentType, filename, data); mime {
	case MimePDF:
		text, err = extractPDF(data)
	case MimeDOCX:
		text, err = extractDOCX(data)
	case MimePlain:
		text, err = extractPlain(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// DetectType normalizes a client-supplied content type.
func DetectType(contentType, filename string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch clean {
	case MimePDF, MimeDOCX, MimePlain:
		return clean
	case "text/markdown":
		return MimePlain
	case "application/zip":
		if isDOCX(data) {
			return MimeDOCX
		}
		return clean
	case "", "application/octet-stream":
	default:
		return clean
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return MimePDF
	case ".docx":
		return MimeDOCX
	case ".txt", ".md":
		return MimePlain
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return MimePDF
	}
	if clean == "" {
		return "application/octet-stream"
	}
	return clean
}

func extractPlain(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text is not valid UTF-8", ErrUnsupportedType)
	}
	return string(data), nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, &capReader{r: plain, n: MaxTextBytes}); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("read docx: word/document.xml not found")
	}
	if docFile.UncompressedSize64 > uint64(maxDocumentXMLBytes) {
		return "", fmt.Errorf("read docx: %w: word/document.xml is %d bytes", ErrTooLarge, docFile.UncompressedSize64)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}
	defer rc.Close()

	// The header size is not trusted.
	return docxText(&capReader{r: rc, n: maxDocumentXMLBytes})
}

// docxText collects the text runs, ending a line at every paragraph and break.
func docxText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var buf strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			if inText {
				buf.Write(t)
				if buf.Len() > MaxTextBytes {
					return "", fmt.Errorf("parse docx: %w", ErrTooLarge)
				}
			}
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				buf.WriteByte('\t')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p", "br":
				if buf.Len() > 0 {
					buf.WriteByte('\n')
				}
			}
		}
	}
	return buf.String(), nil
}

// capReader fails with ErrTooLarge once more than n bytes have been read.
type capReader struct {
	r io.Reader
	n int64
}

func (c *capReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n -= int64(n)
	if c.n < 0 {
		return n, ErrTooLarge
	}
	return n, err
}

func isDOCX(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return true
		}
	}
	return false
}
