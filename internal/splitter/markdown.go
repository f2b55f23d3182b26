package splitter

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownSplitter sections a markdown document at h1/h2 headings and
// prefixes every chunk with its heading so retrieval keeps the section
// context. Oversized sections fall back to the recursive splitter.
type MarkdownSplitter struct {
	inner *RecursiveSplitter
}

func NewMarkdownSplitter(chunkSize, overlap int) *MarkdownSplitter {
	return &MarkdownSplitter{inner: NewRecursiveSplitter(chunkSize, overlap)}
}

func (m *MarkdownSplitter) Split(markdown string) []string {
	source := []byte(markdown)
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var chunks []string
	var heading string
	var section []string

	flush := func() {
		if len(section) == 0 {
			return
		}
		content := strings.Join(section, "\n\n")
		section = nil
		prefix := ""
		if heading != "" {
			prefix = "Heading: " + heading + "\n"
		}
		if utf8.RuneCountInString(prefix+content) <= m.inner.ChunkSize {
			chunks = append(chunks, prefix+content)
			return
		}
		for _, part := range m.inner.Split(content) {
			chunks = append(chunks, prefix+part)
		}
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			if n.Level <= 2 {
				flush()
				heading = string(n.Text(source))
				continue
			}
			section = append(section, string(n.Text(source)))
		case *ast.FencedCodeBlock:
			lang := string(n.Language(source))
			var code strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				code.Write(line.Value(source))
			}
			section = append(section, "```"+lang+"\n"+code.String()+"```")
		default:
			txt := extractText(node, source)
			if txt == "" {
				continue
			}
			section = append(section, txt)
		}
	}
	flush()
	return chunks
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
