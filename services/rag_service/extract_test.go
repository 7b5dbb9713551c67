package rag_service

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func minimalDocx(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct{ name, body string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body>
</w:document>`},
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// minimalPDF writes an uncompressed PDF with one page per entry of pages,
// each showing its text in Helvetica.
func minimalPDF(pages ...string) []byte {
	var buf bytes.Buffer
	var offsets []int
	object := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	object("<< /Type /Catalog /Pages 2 0 R >>")
	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}
	object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)))
	object("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range pages {
		object(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		object(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestSupportedExtension(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"report.pdf", true},
		{"notes.txt", true},
		{"letter.docx", true},
		{"LETTER.DOCX", true},
		{"data.csv", false},
		{"old.doc", false},
		{"noext", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SupportedExtension(tt.name))
		})
	}
}

func TestLoad_UnsupportedBeforeIO(t *testing.T) {
	loader := NewDocumentLoader(testLogger())

	// The file does not exist: an I/O attempt would report a different error.
	_, err := loader.Load(filepath.Join(t.TempDir(), "missing.csv"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_Text(t *testing.T) {
	loader := NewDocumentLoader(testLogger())

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"utf-8", []byte("Alice works at Acme Corp."), "Alice works at Acme Corp."},
		{"utf-8 with BOM", []byte("\ufeffAlice works at Acme Corp."), "Alice works at Acme Corp."},
		{"utf-8 chinese", []byte("爱丽丝在艾克米公司工作。"), "爱丽丝在艾克米公司工作。"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "doc.txt", tt.data)
			blocks, err := loader.Load(path)
			require.NoError(t, err)
			require.Len(t, blocks, 1)
			assert.Equal(t, tt.want, blocks[0].Content)
			assert.Equal(t, path, blocks[0].Metadata["source"])
		})
	}
}

func TestLoad_GBKFallback(t *testing.T) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().String("爱丽丝在艾克米公司工作。")
	require.NoError(t, err)

	path := writeFile(t, "legacy.txt", []byte(encoded))
	blocks, err := NewDocumentLoader(testLogger()).Load(path)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "爱丽丝在艾克米公司工作。", blocks[0].Content)
}

func TestLoad_DecodeFailure(t *testing.T) {
	path := writeFile(t, "binary.txt", []byte("abc\xff"))
	_, err := NewDocumentLoader(testLogger()).Load(path)
	require.ErrorIs(t, err, ErrDecodeFailure)
}

func TestLoad_PDF(t *testing.T) {
	path := writeFile(t, "handbook.pdf", minimalPDF("Alice works at Acme Corp.", "Bob lives in Paris."))
	blocks, err := NewDocumentLoader(testLogger()).Load(path)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Contains(t, blocks[0].Content, "Alice works at Acme Corp.")
	assert.Equal(t, 0, blocks[0].Metadata["page"])
	assert.Equal(t, path, blocks[0].Metadata["source"])

	assert.Contains(t, blocks[1].Content, "Bob lives in Paris.")
	assert.Equal(t, 1, blocks[1].Metadata["page"])
}

func TestLoad_InvalidPDF(t *testing.T) {
	path := writeFile(t, "broken.pdf", []byte("this is not a pdf"))
	_, err := NewDocumentLoader(testLogger()).Load(path)
	require.ErrorIs(t, err, ErrExtraction)
}

func TestLoad_Docx(t *testing.T) {
	path := writeFile(t, "letter.docx", minimalDocx(t, "Alice works at Acme Corp."))
	blocks, err := NewDocumentLoader(testLogger()).Load(path)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0].Content, "Alice works at Acme Corp.")
}

func TestLoad_InvalidDocx(t *testing.T) {
	path := writeFile(t, "broken.docx", []byte("not a zip archive"))
	_, err := NewDocumentLoader(testLogger()).Load(path)
	require.ErrorIs(t, err, ErrExtraction)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewDocumentLoader(testLogger()).Load(filepath.Join(t.TempDir(), "gone.txt"))
	require.ErrorIs(t, err, ErrExtraction)
}
