package parser

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// parseText 将内容作为单个片段返回。非 UTF-8 内容按 ISO-8859-1 解码。
func parseText(content []byte) ([]Segment, error) {
	text := string(content)
	if !utf8.Valid(content) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
		if err != nil {
			return nil, parseErr(TypeText, err)
		}
		text = string(decoded)
	}
	text = trimBOM(text)
	return []Segment{{Text: text, Locator: OffsetLocator(0)}}, nil
}

func trimBOM(s string) string {
	const bom = "\ufeff"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}
	return s
}
