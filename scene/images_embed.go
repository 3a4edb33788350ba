package scene

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeScratchImage writes an embedded glTF image's raw bytes to a
// file under dir/.vkforge-cache so the rest of the loading pipeline
// only ever deals with file paths, regardless of whether the source
// document embeds its images or references them externally.
func writeScratchImage(dir string, sourceIdx uint32, data []byte, mimeType string) (string, error) {
	ext := ".bin"
	switch mimeType {
	case "image/png":
		ext = ".png"
	case "image/jpeg":
		ext = ".jpg"
	}
	cacheDir := filepath.Join(dir, ".vkforge-cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("scene: creating cache dir: %w", err)
	}
	path := filepath.Join(cacheDir, fmt.Sprintf("embedded-%d%s", sourceIdx, ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("scene: writing embedded image %d: %w", sourceIdx, err)
	}
	return path, nil
}
