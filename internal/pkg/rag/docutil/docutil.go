// Package docutil 提供文档文件相关的工具函数。
package docutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StageTempFile 将内容写入临时文件，返回路径和清理函数。
// 调用方必须在所有退出路径上调用 cleanup。
func StageTempFile(content []byte, pattern string) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", func() {}, fmt.Errorf("create temp file: %w", err)
	}
	cleanup = func() { _ = os.Remove(f.Name()) }

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}

// Ext 返回小写且不带点的扩展名。
func Ext(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// FindFiles 在目录中递归查找匹配扩展名的文件，结果按路径排序。
// extensions 不带点，如 []string{"pdf", "txt"}。
func FindFiles(dir string, extensions []string) ([]string, error) {
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := extSet[Ext(path)]; ok {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// FileExists 检查文件是否存在。
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
