package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/pkg/rag/docutil"
)

// Recognizer 从图片中识别文字。
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, mime string) (string, error)
}

// RecognizerFunc 将函数适配为 Recognizer。
type RecognizerFunc func(ctx context.Context, image []byte, mime string) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, image []byte, mime string) (string, error) {
	return f(ctx, image, mime)
}

var imageExtensions = map[string]string{
	"image/png":  "*.png",
	"image/jpeg": "*.jpg",
}

func (p *Parser) parseImage(ctx context.Context, content []byte) ([]Segment, error) {
	mt := mimetype.Detect(content)
	if _, ok := imageExtensions[mt.String()]; !ok {
		return nil, parseErr(TypeImage, fmt.Errorf("content is %s, want png or jpeg", mt.String()))
	}
	if p.recognizer == nil {
		return nil, parseErr(TypeImage, errors.New("no text recognizer configured"))
	}

	text, err := p.recognizer.Recognize(ctx, content, mt.String())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, parseErr(TypeImage, err)
	}
	if strings.TrimSpace(text) == "" {
		logger.Warnw("no text recognized in image", "mime", mt.String(), "bytes", len(content))
		return nil, nil
	}
	return []Segment{{Text: text, Locator: OffsetLocator(0)}}, nil
}

// TesseractRecognizer 调用 tesseract 命令行识别图片文字。
type TesseractRecognizer struct {
	Command   string
	Languages string
}

// NewTesseractRecognizer 创建 TesseractRecognizer，参数为空时使用 tesseract 与 eng。
func NewTesseractRecognizer(command, languages string) *TesseractRecognizer {
	if command == "" {
		command = "tesseract"
	}
	if languages == "" {
		languages = "eng"
	}
	return &TesseractRecognizer{Command: command, Languages: languages}
}

// Recognize 将图片写入临时文件后执行 tesseract，临时文件在返回前删除。
func (r *TesseractRecognizer) Recognize(ctx context.Context, image []byte, mime string) (string, error) {
	pattern, ok := imageExtensions[mime]
	if !ok {
		pattern = "*.img"
	}
	path, cleanup, err := docutil.StageTempFile(image, "docqa-ocr-"+pattern)
	if err != nil {
		return "", err
	}
	defer cleanup()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Command, path, "stdout", "-l", r.Languages)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s: %w: %s", r.Command, err, msg)
		}
		return "", fmt.Errorf("%s: %w", r.Command, err)
	}
	return stdout.String(), nil
}
