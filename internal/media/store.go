// Package media stores uploaded post images on local disk.
package media

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxImageSize = 5 << 20
	// PostsDir is the folder, relative to the media root, that post images go to.
	PostsDir = "posts"
)

var (
	ErrTooLarge     = fmt.Errorf("image exceeds %d MB", MaxImageSize>>20)
	ErrInvalidImage = errors.New("upload a valid image: the file is either not an image or corrupted")
	ErrOutsideRoot  = errors.New("path is outside the media root")
)

var allowedFormats = map[string]string{
	".gif":  "gif",
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
}

type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string {
	return s.root
}

// Save validates the upload and writes it under PostsDir. It returns the path
// relative to the media root, which is what gets stored on the post.
func (s *Store) Save(fh *multipart.FileHeader) (string, error) {
	if fh.Size > MaxImageSize {
		return "", ErrTooLarge
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	want, ok := allowedFormats[ext]
	if !ok {
		return "", ErrInvalidImage
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	_, format, err := image.DecodeConfig(src)
	if err != nil || format != want {
		return "", ErrInvalidImage
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	dir := filepath.Join(s.root, PostsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s%s", time.Now().Format("20060102"), uuid.NewString(), ext)
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}
	return path.Join(PostsDir, name), nil
}

// Delete removes a previously saved file. Missing files are not an error.
func (s *Store) Delete(rel string) error {
	if rel == "" {
		return nil
	}
	clean := path.Clean("/" + rel)[1:]
	if !strings.HasPrefix(clean, PostsDir+"/") {
		return ErrOutsideRoot
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
