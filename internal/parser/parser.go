// Package parser extracts raw unified-diff text from pasted content.
// Diff text often arrives wrapped in markdown fenced code blocks (chat
// transcripts, review comments); this package unwraps it before the
// diff parser sees it.
package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractDiffText returns the diff text contained in content. Fenced
// code blocks tagged "diff" or "patch" (or untagged blocks that look
// like a diff) are concatenated in document order. Content without any
// such block is returned as-is, assuming it is already raw diff text.
func ExtractDiffText(content string) string {
	blocks := fencedBlocks([]byte(content))

	var parts []string
	for _, b := range blocks {
		switch b.lang {
		case "diff", "patch":
			parts = append(parts, b.content)
		case "":
			if looksLikeDiff(b.content) {
				parts = append(parts, b.content)
			}
		}
	}
	if len(parts) == 0 {
		return content
	}
	return strings.Join(parts, "\n")
}

type block struct {
	lang    string
	content string
}

// fencedBlocks walks the markdown AST and collects every fenced code
// block with its language tag.
func fencedBlocks(source []byte) []block {
	var blocks []block
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var b block
		if fenced.Info != nil {
			b.lang = string(fenced.Info.Text(source))
		}

		var content bytes.Buffer
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			content.Write(line.Value(source))
		}
		b.content = content.String()

		blocks = append(blocks, b)
		return ast.WalkSkipChildren, nil
	}

	// Walk never fails here: the walker returns no error.
	_ = ast.Walk(root, walker)
	return blocks
}

// looksLikeDiff is a cheap shape check for untagged code blocks.
func looksLikeDiff(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "@@ -") {
			return true
		}
	}
	return false
}
