package merge

import (
	"os"
	"path/filepath"
)

func readFile(cwd, relPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(cwd, relPath))
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func writeFile(cwd, relPath, content string) error {
	return os.WriteFile(filepath.Join(cwd, relPath), []byte(content), 0o644)
}
