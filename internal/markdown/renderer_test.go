package markdown

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRender(t *testing.T) {
	r := NewRenderer()
	source := []byte("# Hello World\n\nThis is a *test*.")

	result, err := r.Render(source)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if !strings.Contains(result.HTML, `<h1 id="hello-world">Hello World</h1>`) {
		t.Errorf("expected H1 with id in HTML, got %s", result.HTML)
	}
	if !strings.Contains(result.HTML, "<em>test</em>") {
		t.Error("expected italicized test in HTML")
	}
	if result.Title != "Hello World" {
		t.Errorf("expected title Hello World, got %s", result.Title)
	}
	if result.Summary != "This is a test." {
		t.Errorf("expected summary from first paragraph, got %q", result.Summary)
	}
}

func TestRender_TOC(t *testing.T) {
	r := NewRenderer()
	source := []byte("# Head 1\n## Head *2*\n### Head 3\n## Head 1")

	result, err := r.Render(source)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	toc := result.TOC
	if len(toc) != 4 {
		t.Fatalf("expected 4 TOC items, got %d", len(toc))
	}

	want := []TOCItem{
		{Level: 1, Title: "Head 1", Anchor: "head-1"},
		{Level: 2, Title: "Head 2", Anchor: "head-2"},
		{Level: 3, Title: "Head 3", Anchor: "head-3"},
		{Level: 2, Title: "Head 1", Anchor: "head-1-1"},
	}
	for i, item := range want {
		if toc[i] != item {
			t.Errorf("TOC item %d = %+v, want %+v", i, toc[i], item)
		}
	}
}

func TestRender_NoHeadings(t *testing.T) {
	r := NewRenderer()

	result, err := r.Render([]byte("just text\nover two lines"))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if result.Title != "" || len(result.TOC) != 0 {
		t.Errorf("expected no title or TOC, got %q %v", result.Title, result.TOC)
	}
	if result.Summary != "just text over two lines" {
		t.Errorf("unexpected summary %q", result.Summary)
	}
}

func TestRender_RawHTMLIsOmitted(t *testing.T) {
	r := NewRenderer()

	result, err := r.Render([]byte("<script>alert(1)</script>\n\ntext"))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(result.HTML, "<script>") {
		t.Errorf("raw HTML should not be rendered: %s", result.HTML)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"hello world", 6, "hello…"},
		{"中文标题很长", 4, "中文标题…"},
	}

	for _, tt := range tests {
		got := truncate(tt.input, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}

	long := strings.Repeat("word ", 100)
	if n := utf8.RuneCountInString(truncate(long, summaryLen)); n > summaryLen+1 {
		t.Errorf("truncated summary has %d runes", n)
	}
}
