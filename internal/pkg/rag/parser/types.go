package parser

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kart-io/docqa/internal/pkg/rag/docutil"
)

// DocumentType 是解析器支持的封闭文档类型集合。
type DocumentType string

const (
	TypePDF         DocumentType = "pdf"
	TypeSpreadsheet DocumentType = "spreadsheet"
	TypeText        DocumentType = "text"
	TypeImage       DocumentType = "image"
)

// tagTypes 将边界处的类型标记（扩展名、MIME 类型、枚举名）映射到 DocumentType。
var tagTypes = map[string]DocumentType{
	"pdf":             TypePDF,
	"application/pdf": TypePDF,

	"spreadsheet": TypeSpreadsheet,
	"xlsx":        TypeSpreadsheet,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": TypeSpreadsheet,

	"text":       TypeText,
	"txt":        TypeText,
	"text/plain": TypeText,

	"image":      TypeImage,
	"png":        TypeImage,
	"jpg":        TypeImage,
	"jpeg":       TypeImage,
	"image/png":  TypeImage,
	"image/jpeg": TypeImage,
}

// SupportedExtensions 返回可直接按扩展名识别的文件扩展名。
func SupportedExtensions() []string {
	return []string{"pdf", "xlsx", "txt", "png", "jpg", "jpeg"}
}

// ParseTypeTag 将类型标记映射为 DocumentType，未知标记返回 *UnsupportedTypeError。
func ParseTypeTag(tag string) (DocumentType, error) {
	key := strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexByte(key, ';'); i >= 0 {
		key = strings.TrimSpace(key[:i])
	}
	key = strings.TrimPrefix(key, ".")
	if t, ok := tagTypes[key]; ok {
		return t, nil
	}
	return "", &UnsupportedTypeError{Tag: tag}
}

// InferType 根据文件名扩展名推断类型，扩展名缺失或未知时按内容嗅探。
func InferType(filename string, content []byte) (DocumentType, error) {
	if ext := docutil.Ext(filename); ext != "" {
		if t, err := ParseTypeTag(ext); err == nil {
			return t, nil
		}
	}
	mt := mimetype.Detect(content)
	for m := mt; m != nil; m = m.Parent() {
		if t, err := ParseTypeTag(m.String()); err == nil {
			return t, nil
		}
	}
	tag := docutil.Ext(filename)
	if tag == "" {
		tag = mt.String()
	}
	return "", &UnsupportedTypeError{Tag: tag}
}
