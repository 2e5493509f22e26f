package pipeline

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aluiziolira/go-books-catalog/parser"
)

var imageExtByType = map[string]string{
	"image/jpeg":    ".jpg",
	"image/jpg":     ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/bmp":     ".bmp",
	"image/tiff":    ".tif",
	"image/svg+xml": ".svg",
}

var knownImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ImageStore lays out cover images as <root>/<category>/<name><ext>.
type ImageStore struct {
	root string
}

// NewImageStore returns a store rooted at root. Directories are created on
// first write.
func NewImageStore(root string) *ImageStore {
	return &ImageStore{root: root}
}

// Path returns where the image at imageURL is stored for category and name,
// using the extension of the URL.
func (s *ImageStore) Path(category, name, imageURL string) string {
	return s.pathWithExt(category, name, extFromURL(imageURL))
}

// Exists reports whether a non-empty file is already stored at p.
func (s *ImageStore) Exists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Save writes body for the image at imageURL and returns the local path. The
// extension follows contentType when it names a known image type. The file
// is written beside its destination and renamed into place.
func (s *ImageStore) Save(category, name, imageURL, contentType string, body []byte) (string, error) {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if mediaType != "" && !strings.HasPrefix(mediaType, "image/") {
		return "", &ImageError{URL: imageURL, Err: fmt.Errorf("unexpected content type %q", contentType)}
	}
	if len(body) == 0 {
		return "", &ImageError{URL: imageURL, Err: errors.New("empty body")}
	}

	ext := extFromURL(imageURL)
	if byType, ok := imageExtByType[mediaType]; ok && !sameExt(byType, ext) {
		ext = byType
	}
	dest := s.pathWithExt(category, name, ext)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", &ImageError{URL: imageURL, Path: dest, Err: err}
	}
	tmp := dest + ".part"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		os.Remove(tmp)
		return "", &ImageError{URL: imageURL, Path: dest, Err: err}
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", &ImageError{URL: imageURL, Path: dest, Err: err}
	}
	return dest, nil
}

func (s *ImageStore) pathWithExt(category, name, ext string) string {
	if strings.TrimSpace(category) == "" {
		category = parser.UnknownCategory
	}
	return filepath.Join(s.root, parser.SanitizeName(category), parser.SanitizeName(name)+ext)
}

func extFromURL(imageURL string) string {
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if !knownImageExts[ext] {
		return ".jpg"
	}
	return ext
}

// sameExt treats .jpg and .jpeg as one type.
func sameExt(a, b string) bool {
	norm := func(e string) string {
		if e == ".jpeg" {
			return ".jpg"
		}
		return e
	}
	return norm(a) == norm(b)
}
