package parser

import (
	"bytes"
	"context"
	"errors"

	"github.com/ledongthuc/pdf"
)

// parsePDF 每个非空页生成一个片段，页码从 1 开始。
func parsePDF(ctx context.Context, content []byte) (segments []Segment, err error) {
	defer recoverParse(TypePDF, &err)

	if len(content) == 0 {
		return nil, parseErr(TypePDF, errors.New("empty content"))
	}

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, parseErr(TypePDF, err)
	}

	fonts := make(map[string]*pdf.Font)
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, parseErr(TypePDF, err)
		}
		segments = append(segments, Segment{Text: text, Locator: PageLocator(i)})
	}
	return segments, nil
}
