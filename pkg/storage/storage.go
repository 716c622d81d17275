package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	ErrInvalidKey       = errors.New("非法的存储路径")
	ErrInvalidExtension = errors.New("文件扩展名不合法")
	ErrTooLarge         = errors.New("文件超过大小限制")
)

const (
	profilePictureDir = "profile_pictures"
	documentDir       = "document_uploads"
)

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// Storage 本地文件存储
// key 为相对 root 的斜杠路径，例如 document_uploads/EDOC-2025-010001.pdf
type Storage struct {
	root     string
	maxBytes int64
}

// New 创建存储并确保目录存在
func New(root string, maxBytes int64) (*Storage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("解析存储目录失败: %w", err)
	}
	for _, dir := range []string{profilePictureDir, documentDir} {
		if err := os.MkdirAll(filepath.Join(abs, dir), 0o755); err != nil {
			return nil, fmt.Errorf("创建存储目录失败: %w", err)
		}
	}
	return &Storage{root: abs, maxBytes: maxBytes}, nil
}

// ProfilePictureKey 头像存储 key：profile_pictures/<用户ID><扩展名>
func ProfilePictureKey(userID, filename string) (string, error) {
	ext, err := Ext(filename)
	if err != nil {
		return "", err
	}
	return profilePictureDir + "/" + userID + ext, nil
}

// DocumentKey 申请附件存储 key：document_uploads/<申请编号><扩展名>
func DocumentKey(appNo, filename string) (string, error) {
	ext, err := Ext(filename)
	if err != nil {
		return "", err
	}
	return documentDir + "/" + appNo + ext, nil
}

// Ext 取上传文件名的扩展名（小写），只允许字母数字
func Ext(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !extPattern.MatchString(ext) {
		return "", ErrInvalidExtension
	}
	return ext, nil
}

func (s *Storage) path(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(p, s.root+string(os.PathSeparator)) {
		return "", ErrInvalidKey
	}
	return p, nil
}

// Save 写入文件，先写临时文件再重命名，超出大小限制时返回 ErrTooLarge
func (s *Storage) Save(key string, r io.Reader) (int64, error) {
	p, err := s.path(key)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // 重命名成功后为空操作

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("写入文件失败: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return 0, ErrTooLarge
	}

	if err := os.Rename(tmpName, p); err != nil {
		return 0, fmt.Errorf("保存文件失败: %w", err)
	}
	return n, nil
}

// Open 打开已存储的文件
func (s *Storage) Open(key string) (*os.File, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Remove 删除文件，文件不存在时返回 os.ErrNotExist
func (s *Storage) Remove(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	return os.Remove(p)
}
