package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	httperrors "github.com/HnustLzh2/http/internal/errors"
)

// ErrNotExist 表示请求的文件不存在
var ErrNotExist = fs.ErrNotExist

// Dir 是文件读写的根目录。它只是一个路径，没有状态，可以在多个连接间共享。
type Dir string

// Resolve 把请求中的文件名拼到根目录下。
// 空文件名、绝对路径和包含 ".." 的路径段都会被拒绝。
func (d Dir) Resolve(name string) (string, error) {
	if name == "" {
		return "", httperrors.New(httperrors.MalformedRequest, "empty file name", nil)
	}
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", httperrors.New(httperrors.MalformedRequest, "absolute file name "+name, nil)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", httperrors.New(httperrors.MalformedRequest, "file name escapes directory: "+name, nil)
		}
	}
	return filepath.Join(string(d), filepath.FromSlash(name)), nil
}

// ReadFile 读取整个文件。文件不存在（或者是目录）时返回包装了 ErrNotExist 的错误。
func (d Dir) ReadFile(name string) ([]byte, error) {
	path, err := d.Resolve(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotExist)
		}
		return nil, httperrors.New(httperrors.FilesystemFailure, "stat "+name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", name, ErrNotExist)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotExist)
		}
		return nil, httperrors.New(httperrors.FilesystemFailure, "read "+name, err)
	}
	return data, nil
}

// WriteFile 创建或覆盖文件。同名文件的并发写入不做协调，后写者生效。
func (d Dir) WriteFile(name string, data []byte) error {
	path, err := d.Resolve(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return httperrors.New(httperrors.FilesystemFailure, "write "+name, err)
	}
	return nil
}
