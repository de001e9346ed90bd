// Package knowledge loads the security best-practice reference embedded in
// audit prompts.
package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LoadBestPractices reads the reference at path. Plain text is returned as
// is; HTML pages are reduced to their visible text.
func LoadBestPractices(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no best-practice path configured")
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to read best practices: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return ExtractText(string(data))
	default:
		return string(data), nil
	}
}

// ExtractText returns the visible text of an HTML document, one trimmed line
// per non-empty text line.
func ExtractText(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, template").Remove()
	// block elements get a line break so their text does not run together
	doc.Find("p, li, h1, h2, h3, h4, h5, h6, pre, tr, br, div").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var lines []string
	for _, line := range strings.Split(root.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
