package act

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	acterrors "github.com/stevehiehn/acttest/internal/errors"
)

// Default image sizes.
const (
	ImageMicro  = "micro"
	ImageMedium = "medium"
	ImageLarge  = "large"
)

const catthehacker = "ghcr.io/catthehacker/"

var defaultImages = map[string][][2]string{
	ImageMicro: {
		{"ubuntu-latest", "node:16-buster-slim"},
		{"ubuntu-20.04", "node:16-buster-slim"},
		{"ubuntu-18.04", "node:16-buster-slim"},
		{"ubuntu-22.04", "node:16-bullseye-slim"},
	},
	ImageMedium: {
		{"ubuntu-latest", catthehacker + "ubuntu:act-latest"},
		{"ubuntu-20.04", catthehacker + "ubuntu:act-20.04"},
		{"ubuntu-18.04", catthehacker + "ubuntu:act-18.04"},
		{"ubuntu-22.04", catthehacker + "ubuntu:act-22.04"},
	},
	ImageLarge: {
		{"ubuntu-latest", catthehacker + "ubuntu:full-latest"},
		{"ubuntu-20.04", catthehacker + "ubuntu:full-20.04"},
		{"ubuntu-18.04", catthehacker + "ubuntu:full-18.04"},
	},
}

// actrc renders the platform mapping for size.
func actrc(size string) (string, error) {
	images, ok := defaultImages[size]
	if !ok {
		return "", &acterrors.RunError{
			Type:    acterrors.UnsupportedPlatform,
			Message: fmt.Sprintf("unknown default image size %q", size),
			Hint:    "use micro, medium or large",
		}
	}
	lines := make([]string, len(images))
	for i, img := range images {
		lines[i] = fmt.Sprintf("-P %s=%s", img[0], img[1])
	}
	return strings.Join(lines, "\n"), nil
}

// setDefaultImage writes ~/.actrc unless it already exists.
func (a *Act) setDefaultImage() error {
	home := a.home
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("locating home directory: %w", err)
		}
		home = h
	}
	path := filepath.Join(home, ".actrc")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	content, err := actrc(a.imageSize)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	a.log.Debug("wrote default act images", zap.String("path", path), zap.String("size", a.imageSize))
	return nil
}
