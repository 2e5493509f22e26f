package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestImageStorePath(t *testing.T) {
	store := NewImageStore("images")
	tests := []struct {
		name     string
		category string
		upc      string
		url      string
		want     string
	}{
		{
			name:     "jpg",
			category: "Historical Fiction",
			upc:      "a897fe39b1053632",
			url:      "https://books.toscrape.com/media/cache/fe/72/fe72.jpg",
			want:     filepath.Join("images", "Historical_Fiction", "a897fe39b1053632.jpg"),
		},
		{
			name:     "png with query",
			category: "Poetry",
			upc:      "x1",
			url:      "https://books.toscrape.com/media/cover.PNG?size=large",
			want:     filepath.Join("images", "Poetry", "x1.png"),
		},
		{
			name:     "unknown extension",
			category: "Poetry",
			upc:      "x2",
			url:      "https://books.toscrape.com/media/cover",
			want:     filepath.Join("images", "Poetry", "x2.jpg"),
		},
		{
			name:     "empty category",
			category: "",
			upc:      "x3",
			url:      "https://books.toscrape.com/media/cover.gif",
			want:     filepath.Join("images", "Unknown", "x3.gif"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.Path(tt.category, tt.upc, tt.url); got != tt.want {
				t.Fatalf("Path() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImageStoreSaveCreatesCategoryDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "images")
	store := NewImageStore(root)

	path, err := store.Save("Sequential Art", "upc1", "http://example.test/media/a.jpg", "image/jpeg", []byte("jpegdata"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if want := filepath.Join(root, "Sequential_Art", "upc1.jpg"); path != want {
		t.Fatalf("path=%q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "jpegdata" {
		t.Fatalf("stored data=%q err=%v", data, err)
	}
	if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
		t.Fatalf("temporary file should be gone, stat err=%v", err)
	}
	if !store.Exists(path) {
		t.Fatalf("Exists should report the saved image")
	}
}

func TestImageStoreSaveExtensionFromContentType(t *testing.T) {
	store := NewImageStore(t.TempDir())

	path, err := store.Save("Poetry", "upc2", "http://example.test/media/a.jpg", "image/png; charset=binary", []byte("png"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Ext(path) != ".png" {
		t.Fatalf("ext=%q, want .png", filepath.Ext(path))
	}

	path, err = store.Save("Poetry", "upc3", "http://example.test/media/a.jpeg", "image/jpeg", []byte("jpg"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Ext(path) != ".jpeg" {
		t.Fatalf("ext=%q, want the URL's .jpeg kept", filepath.Ext(path))
	}
}

func TestImageStoreSaveRejectsBadContent(t *testing.T) {
	store := NewImageStore(t.TempDir())
	tests := []struct {
		name        string
		contentType string
		body        []byte
	}{
		{name: "html body", contentType: "text/html; charset=utf-8", body: []byte("<html></html>")},
		{name: "empty body", contentType: "image/jpeg", body: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Save("Poetry", "upc", "http://example.test/media/a.jpg", tt.contentType, tt.body)
			var imageErr *ImageError
			if !errors.As(err, &imageErr) {
				t.Fatalf("expected ImageError, got %v", err)
			}
		})
	}
}

func TestImageStoreExists(t *testing.T) {
	dir := t.TempDir()
	store := NewImageStore(dir)

	empty := filepath.Join(dir, "empty.jpg")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if store.Exists(empty) {
		t.Fatalf("empty file should not count as stored")
	}
	if store.Exists(filepath.Join(dir, "missing.jpg")) {
		t.Fatalf("missing file should not count as stored")
	}
	if store.Exists(dir) {
		t.Fatalf("directory should not count as stored")
	}
}
