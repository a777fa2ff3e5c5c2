package server

import "path/filepath"

func extOf(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ".bin"
	}
	return ext
}
