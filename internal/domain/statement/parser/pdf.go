package parser

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// yTolerance is how far apart two glyphs' Y coordinates may be while still
// belonging to the same visual line.
const yTolerance = 5.0

// Token is one positioned text fragment on a PDF line.
type Token struct {
	Text string
	X    float64
}

// Line is a reconstructed row of PDF text, glyphs grouped by vertical
// position and ordered left to right.
type Line struct {
	Page   int
	Y      float64
	Text   string
	Tokens []Token
}

// ParsePDF reconstructs the positioned text lines of a PDF statement.
// PDFs carry no column headers, so the result is lines rather than a Table;
// the assembler turns them into transactions.
func ParsePDF(data []byte) (lines []Line, err error) {
	// The pdf library panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			lines = nil
			err = fmt.Errorf("%w: pdf decode panic: %v", ErrMalformedInput, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("%w: pdf has no pages", ErrMalformedInput)
	}

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		lines = append(lines, assemblePageLines(pageNum, page.Content().Text)...)
	}

	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no extractable text, file may be a scanned image", ErrMalformedInput)
	}
	return lines, nil
}

// assemblePageLines groups glyphs into lines by Y coordinate within
// yTolerance, then orders each line's tokens left to right.
func assemblePageLines(pageNum int, glyphs []pdf.Text) []Line {
	type bucket struct {
		y      float64
		tokens []Token
	}
	var buckets []*bucket

	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			continue
		}
		var target *bucket
		for _, b := range buckets {
			if abs(b.y-g.Y) <= yTolerance {
				target = b
				break
			}
		}
		if target == nil {
			target = &bucket{y: g.Y}
			buckets = append(buckets, target)
		}
		target.tokens = append(target.tokens, Token{Text: g.S, X: g.X})
	}

	// PDF Y grows bottom to top; read top line first.
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].y > buckets[j].y })

	lines := make([]Line, 0, len(buckets))
	for _, b := range buckets {
		sort.Slice(b.tokens, func(i, j int) bool { return b.tokens[i].X < b.tokens[j].X })
		lines = append(lines, Line{
			Page:   pageNum,
			Y:      b.y,
			Text:   joinTokens(b.tokens),
			Tokens: mergeAdjacent(b.tokens),
		})
	}
	return lines
}

// mergeAdjacent fuses glyphs that sit right next to each other into word
// tokens, keeping a token boundary where the horizontal gap suggests a
// column break.
func mergeAdjacent(tokens []Token) []Token {
	const gap = 8.0
	var merged []Token
	for _, t := range tokens {
		if n := len(merged); n > 0 && t.X-lastTokenEnd(merged[n-1]) < gap {
			merged[n-1].Text += t.Text
			continue
		}
		merged = append(merged, t)
	}
	for i := range merged {
		merged[i].Text = strings.TrimSpace(merged[i].Text)
	}
	return merged
}

// lastTokenEnd estimates where a token's text ends horizontally. Glyph
// widths are not tracked, so an average character width is assumed.
func lastTokenEnd(t Token) float64 {
	const avgCharWidth = 6.0
	return t.X + float64(len(t.Text))*avgCharWidth
}

func joinTokens(tokens []Token) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range mergeAdjacent(tokens) {
		if t.Text != "" {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, " ")
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
