package parser

import "fmt"

// UnsupportedTypeError 表示类型标记不在支持的集合中。
type UnsupportedTypeError struct {
	Tag string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported document type %q", e.Tag)
}

// ParseError 表示内容损坏或无法抽取。
type ParseError struct {
	Type DocumentType
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s document: %v", e.Type, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(t DocumentType, err error) error {
	return &ParseError{Type: t, Err: err}
}
