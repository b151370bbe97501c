package biz

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/kart-io/docqa/internal/pkg/rag/parser"
	"github.com/kart-io/docqa/internal/rag/store"
	"github.com/kart-io/docqa/pkg/infra/pool"
	"github.com/kart-io/docqa/pkg/utils/errors"
)

// 入库与查询流水线的错误类型。
type (
	// UnsupportedTypeError 类型标记不在支持的集合中。
	UnsupportedTypeError = parser.UnsupportedTypeError
	// ParseError 文档内容损坏或无法抽取。
	ParseError = parser.ParseError
	// IndexError 向量库不可用，可稍后重试。
	IndexError = store.IndexError
)

var (
	// ErrDimensionMismatch 向量维度与集合不一致。
	ErrDimensionMismatch = store.ErrDimensionMismatch
	// ErrEmptyQuestion 问题为空。
	ErrEmptyQuestion = stderrors.New("question must not be empty")
)

// TooLargeError 上传内容超过大小限制。
type TooLargeError struct {
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("document is %d bytes, limit is %d", e.Size, e.Limit)
}

// EmbeddingError 向量化失败：永久错误或重试预算耗尽。
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// GenerationError 答案生成失败：永久错误或重试预算耗尽。
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ToErrno 将流水线错误映射为对外错误码。已经是 Errno 的错误原样返回。
func ToErrno(err error) *errors.Errno {
	if err == nil {
		return nil
	}

	var (
		e           *errors.Errno
		unsupported *UnsupportedTypeError
		parseErr    *ParseError
		tooLarge    *TooLargeError
		embedErr    *EmbeddingError
		indexErr    *IndexError
		genErr      *GenerationError
	)
	switch {
	case stderrors.As(err, &e):
		return e
	case stderrors.As(err, &unsupported):
		return errors.ErrDocUnsupportedType.WithCause(err)
	case stderrors.As(err, &parseErr):
		return errors.ErrDocParseFailed.WithCause(err)
	case stderrors.As(err, &tooLarge):
		return errors.ErrDocTooLarge.WithCause(err)
	case stderrors.Is(err, ErrEmptyQuestion):
		return errors.ErrQueryEmpty
	case stderrors.Is(err, ErrDimensionMismatch):
		return errors.ErrIndexDimension.WithCause(err)
	case stderrors.As(err, &embedErr):
		return errors.ErrEmbeddingFailed.WithCause(err)
	case stderrors.As(err, &indexErr):
		return errors.ErrIndexUnavailable.WithCause(err)
	case stderrors.As(err, &genErr):
		return errors.ErrGenerationFailed.WithCause(err)
	case stderrors.Is(err, pool.ErrPoolOverload), stderrors.Is(err, pool.ErrPoolClosed):
		return errors.ErrIngestBusy.WithCause(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.ErrQueryTimeout.WithCause(err)
	default:
		return errors.ErrInternal.WithCause(err)
	}
}

// failureReason 返回写入文档记录的失败原因。
func failureReason(err error) string {
	if stderrors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return err.Error()
}
