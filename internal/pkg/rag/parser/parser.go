// Package parser 将原始文档内容抽取为带定位信息的文本片段。
package parser

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/pkg/rag/textutil"
)

// Segment 是从文档中抽取的一段文本及其位置。
type Segment struct {
	Text    string  `json:"text"`
	Locator Locator `json:"locator"`
}

// Parser 按文档类型抽取文本片段。
type Parser struct {
	recognizer Recognizer
}

// Option 配置 Parser。
type Option func(*Parser)

// WithRecognizer 设置图片文字识别器。
func WithRecognizer(r Recognizer) Option {
	return func(p *Parser) { p.recognizer = r }
}

// New 创建 Parser，默认使用 tesseract 命令行做图片识别。
func New(opts ...Option) *Parser {
	p := &Parser{recognizer: NewTesseractRecognizer("", "")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse 抽取 content 中的文本片段。空白片段会被丢弃。
func (p *Parser) Parse(ctx context.Context, content []byte, t DocumentType) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		segments []Segment
		err      error
	)
	switch t {
	case TypePDF:
		segments, err = parsePDF(ctx, content)
	case TypeSpreadsheet:
		segments, err = parseSpreadsheet(ctx, content)
	case TypeText:
		segments, err = parseText(content)
	case TypeImage:
		segments, err = p.parseImage(ctx, content)
	default:
		return nil, &UnsupportedTypeError{Tag: string(t)}
	}
	if err != nil {
		return nil, err
	}

	out := segments[:0]
	for _, s := range segments {
		s.Text = textutil.CleanText(s.Text)
		if s.Text != "" {
			out = append(out, s)
		}
	}

	logger.Debugw("document parsed",
		"type", string(t),
		"bytes", len(content),
		"segments", len(out),
	)
	return out, nil
}

// ParseTagged 解析类型标记后抽取文本片段。
func (p *Parser) ParseTagged(ctx context.Context, content []byte, tag string) ([]Segment, error) {
	t, err := ParseTypeTag(tag)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, content, t)
}

func recoverParse(t DocumentType, err *error) {
	if r := recover(); r != nil {
		*err = parseErr(t, fmt.Errorf("panic: %v", r))
	}
}
