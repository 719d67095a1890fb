package parser

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"pdf-qa/internal/llmtest"
	"pdf-qa/internal/models"

	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadPages_Text(t *testing.T) {
	path := writeFile(t, "notes.txt", "  The launch is on Friday.  \n")

	pages, err := LoadPages(path)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if pages[0].Number != 1 || pages[0].Text != "The launch is on Friday." {
		t.Fatalf("unexpected page %+v", pages[0])
	}
}

func TestLoadPages_PDFPagesNumbered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brochure.pdf")
	llmtest.WritePDF(t, path, "The launch window opens on Friday.", "The rocket is called Heron.")

	pages, err := LoadPages(path)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %+v", pages)
	}
	if pages[0].Number != 1 || pages[0].Text != "The launch window opens on Friday." {
		t.Fatalf("unexpected first page %+v", pages[0])
	}
	if pages[1].Number != 2 || pages[1].Text != "The rocket is called Heron." {
		t.Fatalf("unexpected second page %+v", pages[1])
	}
}

func TestLoadPages_PDFBlankPageKeepsNumbering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gap.pdf")
	llmtest.WritePDF(t, path, "Cover", " ", "Appendix")

	pages, err := LoadPages(path)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	if len(pages) != 2 || pages[0].Number != 1 || pages[1].Number != 3 {
		t.Fatalf("expected pages 1 and 3, got %+v", pages)
	}
}

func TestLoadPages_CorruptPDF(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.pdf")
	if err := os.WriteFile(garbage, []byte("this is not a pdf at all"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadPages(garbage); err == nil {
		t.Fatalf("expected error for a non-PDF file")
	}

	// every xref entry points at object 1
	xrefEntry := regexp.MustCompile(`\d{10} 00000 n`)
	data := xrefEntry.ReplaceAll(llmtest.PDFBytes("one", "two"), []byte("0000000009 00000 n"))
	broken := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(broken, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadPages(broken); err == nil {
		t.Fatalf("expected error for a PDF with a broken xref table")
	}
}

func TestParseDocument_PDFProvenance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brochure.pdf")
	llmtest.WritePDF(t, path, "The launch window opens on Friday.", "The rocket is called Heron.")

	chunks, err := ParseDocument(path, 500, 50)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected one chunk per page, got %+v", chunks)
	}
	if chunks[1].ID != "brochure.pdf-p2-c1" || chunks[1].PageNumber != 2 {
		t.Fatalf("unexpected provenance %+v", chunks[1])
	}
}

func TestLoadPages_EmptyTextHasNoPages(t *testing.T) {
	path := writeFile(t, "blank.txt", " \n\t ")

	pages, err := LoadPages(path)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	if len(pages) != 0 {
		t.Fatalf("expected no pages, got %d", len(pages))
	}
}

func TestLoadPages_Markdown(t *testing.T) {
	path := writeFile(t, "readme.md", "# Hackathon\n\nThe USP is **speed** and *focus*.\n\n```\ncode line\n```\n")

	pages, err := LoadPages(path)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	got := pages[0].Text
	for _, want := range []string{"Hackathon", "The USP is speed and focus.", "code line"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
	if strings.Contains(got, "**") || strings.Contains(got, "#") {
		t.Fatalf("expected markdown syntax stripped, got %q", got)
	}
}

func TestLoadPages_Unsupported(t *testing.T) {
	path := writeFile(t, "image.png", "not really")

	_, err := LoadPages(path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if Supported(path) {
		t.Fatalf("expected .png to be unsupported")
	}
	if !Supported("REPORT.PDF") {
		t.Fatalf("expected extension match to ignore case")
	}
}

func TestLoadPages_PPTXSlidesInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	slides := []struct{ name, body string }{
		{"ppt/slides/slide10.xml", `<p:sld><a:p><a:r><a:t>Tenth</a:t></a:r></a:p></p:sld>`},
		{"ppt/slides/slide2.xml", `<p:sld><a:p><a:r><a:t xml:space="preserve">Sec</a:t></a:r><a:r><a:t>ond &amp; more</a:t></a:r></a:p></p:sld>`},
		{"ppt/slides/_rels/slide2.xml.rels", `<Relationships/>`},
	}
	for _, s := range slides {
		w, err := zw.Create(s.name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(s.body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	f.Close()

	pages, err := LoadPages(path)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 slides, got %d", len(pages))
	}
	if pages[0].Number != 2 || pages[0].Text != "Second & more" {
		t.Fatalf("unexpected first slide %+v", pages[0])
	}
	if pages[1].Number != 10 || pages[1].Text != "Tenth" {
		t.Fatalf("unexpected second slide %+v", pages[1])
	}
}

func TestLoadPages_XLSM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.xlsm")
	wb := excelize.NewFile()
	if err := wb.SetCellValue("Sheet1", "A1", "item"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	if err := wb.SetCellValue("Sheet1", "B1", "cost"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	if err := wb.SaveAs(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	wb.Close()

	pages, err := LoadPages(path)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 sheet, got %d", len(pages))
	}
	if !strings.Contains(pages[0].Text, "Sheet: Sheet1") || !strings.Contains(pages[0].Text, "item\tcost") {
		t.Fatalf("unexpected sheet text %q", pages[0].Text)
	}
}

func TestExtractTextFromXML_DocxParagraphs(t *testing.T) {
	xml := `<w:body><w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t xml:space="preserve">world</w:t></w:r></w:p>` +
		`<w:p></w:p><w:p><w:r><w:t>Second</w:t></w:r></w:p></w:body>`

	got := extractTextFromXML(xml, "</w:p>", docxTextRe)
	if got != "Hello world\nSecond" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestSplitPages_RespectsSizeAndPages(t *testing.T) {
	long := strings.Repeat("alpha beta gamma delta epsilon ", 60)
	pages := []models.Page{
		{Number: 1, Text: long},
		{Number: 3, Text: "Short third page."},
	}

	chunks, err := SplitPages("/tmp/uploads/report.pdf", pages, 500, 50)
	if err != nil {
		t.Fatalf("SplitPages: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	last := chunks[len(chunks)-1]
	if last.PageNumber != 3 || last.ChunkID != 1 || last.Content != "Short third page." {
		t.Fatalf("unexpected last chunk %+v", last)
	}
	if last.ID != "report.pdf-p3-c1" {
		t.Fatalf("unexpected chunk id %q", last.ID)
	}

	for i, c := range chunks {
		if len([]rune(c.Content)) > 500 {
			t.Fatalf("chunk %d exceeds size: %d", i, len([]rune(c.Content)))
		}
		if c.Source != "/tmp/uploads/report.pdf" {
			t.Fatalf("chunk %d lost its source: %q", i, c.Source)
		}
	}
}

func TestSplitPages_Deterministic(t *testing.T) {
	pages := []models.Page{{Number: 1, Text: strings.Repeat("one two three four five six. ", 80)}}

	a, err := SplitPages("doc.txt", pages, 200, 20)
	if err != nil {
		t.Fatalf("SplitPages: %v", err)
	}
	b, err := SplitPages("doc.txt", pages, 200, 20)
	if err != nil {
		t.Fatalf("SplitPages: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitPages_InvalidParameters(t *testing.T) {
	pages := []models.Page{{Number: 1, Text: "text"}}
	cases := []struct{ size, overlap int }{
		{0, 0},
		{100, -1},
		{100, 100},
	}
	for _, tc := range cases {
		if _, err := SplitPages("doc.txt", pages, tc.size, tc.overlap); !errors.Is(err, ErrInvalidChunking) {
			t.Fatalf("size %d overlap %d: expected ErrInvalidChunking, got %v", tc.size, tc.overlap, err)
		}
	}
}

func TestParseDocument(t *testing.T) {
	path := writeFile(t, "fact.txt", "The secret code is 4242.")

	chunks, err := ParseDocument(path, 500, 50)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content != "The secret code is 4242." {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
}
