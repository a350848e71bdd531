// Package artifacts writes conversion output to the filesystem:
// <stem>.md plus an optional <stem>_images/ folder.
package artifacts

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
)

// ErrUnsupportedImage is returned for payloads that are neither raw bytes
// nor a decoded image, and for decoded images with an unknown extension.
var ErrUnsupportedImage = errors.New("unsupported image payload")

type encodeFunc func(w io.Writer, img image.Image) error

var encoders = map[string]encodeFunc{
	".png":  png.Encode,
	".jpg":  encodeJPEG,
	".jpeg": encodeJPEG,
	".gif":  func(w io.Writer, img image.Image) error { return gif.Encode(w, img, nil) },
	".bmp":  bmp.Encode,
	".tif":  func(w io.Writer, img image.Image) error { return tiff.Encode(w, img, nil) },
	".tiff": func(w io.Writer, img image.Image) error { return tiff.Encode(w, img, nil) },
}

func encodeJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
}

// FSWriter implements ports.ArtifactWriter.
type FSWriter struct{}

// NewFSWriter creates a filesystem artifact writer.
func NewFSWriter() *FSWriter {
	return &FSWriter{}
}

// Write persists images first and then the Markdown file, atomically.
// It returns the Markdown path.
func (w *FSWriter) Write(outDir string, job entities.ConversionJob, rendered *entities.Rendered) (string, error) {
	if rendered == nil {
		return "", errors.New("nothing rendered")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	if len(rendered.Images) > 0 {
		imgDir := filepath.Join(outDir, job.ImageDirName())
		_, statErr := os.Stat(imgDir)
		created := errors.Is(statErr, os.ErrNotExist)

		if err := writeImages(imgDir, rendered.Images); err != nil {
			if created {
				os.RemoveAll(imgDir)
			}
			return "", err
		}
	}

	mdPath := filepath.Join(outDir, job.MarkdownName())
	if err := writeFileAtomic(mdPath, []byte(rendered.Markdown)); err != nil {
		return "", err
	}
	return mdPath, nil
}

func writeImages(dir string, images map[string]any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating image dir: %w", err)
	}

	names := make([]string, 0, len(images))
	for name := range images {
		names = append(names, name)
	}
	sort.Strings(names)

	// Each entry must land in its own file.
	taken := make(map[string]string, len(names))
	for _, name := range names {
		clean := filepath.Base(name)
		if clean == "." || clean == ".." || clean == string(filepath.Separator) {
			return fmt.Errorf("invalid image name %q", name)
		}
		if prev, ok := taken[clean]; ok {
			return fmt.Errorf("image names %q and %q both map to %s", prev, name, clean)
		}
		taken[clean] = name
		if err := writeImage(filepath.Join(dir, clean), images[name]); err != nil {
			return fmt.Errorf("image %s: %w", name, err)
		}
	}
	return nil
}

func writeImage(path string, payload any) error {
	switch p := payload.(type) {
	case []byte:
		return os.WriteFile(path, p, 0o644)
	case image.Image:
		enc, ok := encoders[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return fmt.Errorf("%w: no encoder for %q", ErrUnsupportedImage, filepath.Ext(path))
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := enc(f, p); err != nil {
			f.Close()
			os.Remove(path)
			return fmt.Errorf("encoding: %w", err)
		}
		return f.Close()
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedImage, payload)
	}
}

// writeFileAtomic writes to a temp file in the same directory and renames it.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "tmp-*.md")
	if err != nil {
		return fmt.Errorf("create temp markdown: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp markdown: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp markdown: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename temp markdown: %w", err)
	}
	return nil
}
