package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"
)

//go:embed censored/*.txt
var censoredFS embed.FS

// loadEmbeddedLists reads every embedded word list. The file name is the
// ISO 639-1 code of the language it covers (e.g. "fr.txt").
func loadEmbeddedLists() (map[string][]string, error) {
	entries, err := fs.ReadDir(censoredFS, "censored")
	if err != nil {
		return nil, err
	}

	lists := make(map[string][]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		lang := strings.TrimSuffix(entry.Name(), ".txt")

		data, err := censoredFS.ReadFile("censored/" + entry.Name())
		if err != nil {
			return nil, err
		}

		// A scanner handles both \n and \r\n line endings.
		var words []string
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			words = append(words, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		lists[lang] = words
	}
	return lists, nil
}
