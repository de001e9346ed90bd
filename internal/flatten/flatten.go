// Package flatten inlines the relative imports of a contract into a single
// source unit so the backend sees every dependency in one prompt.
package flatten

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// ErrInvalidEncoding is returned when a source file is not valid UTF-8.
var ErrInvalidEncoding = errors.New("source is not valid UTF-8")

// Only plain double-quoted imports are inlined. Aliased, symbol and
// single-quoted imports never match and stay in the text.
var importPattern = regexp.MustCompile(`\bimport\s+"([^"]+)"\s*;`)

// Marker precedes the inlined content of an import.
func Marker(importPath string) string {
	return "// ---- flattened import: " + importPath + " ----"
}

// NotFoundMarker replaces an import whose target does not exist.
func NotFoundMarker(importPath string) string {
	return "// [flatten] import not found: " + importPath
}

// Flatten returns the flattened source of rootPath. On any failure other than
// a missing import it logs a warning and returns false; callers then use the
// original source.
func Flatten(rootPath string) (string, bool) {
	out, err := Resolve(rootPath)
	if err != nil {
		log.Warn().Err(err).Str("file", rootPath).Msg("⚠️ Import flattening failed, using original source")
		return "", false
	}
	return out, true
}

// Resolve flattens rootPath depth-first. Each distinct file is inlined at most
// once; a repeated or cyclic import contributes only its marker.
func Resolve(rootPath string) (string, error) {
	root, err := canonicalPath(rootPath)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", rootPath, err)
	}
	visited := make(map[string]struct{})
	return resolveFile(root, visited)
}

func resolveFile(path string, visited map[string]struct{}) (string, error) {
	if _, seen := visited[path]; seen {
		return "", nil
	}
	visited[path] = struct{}{}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: %w", path, ErrInvalidEncoding)
	}
	src := string(data)

	matches := importPattern.FindAllStringSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return src, nil
	}

	dir := filepath.Dir(path)
	var b strings.Builder
	b.Grow(len(src))
	last := 0
	for _, m := range matches {
		b.WriteString(src[last:m[0]])
		last = m[1]
		importPath := src[m[2]:m[3]]

		target := importPath
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		canon, err := canonicalPath(target)
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("import", importPath).Str("from", path).Msg("import target not found")
			b.WriteString(NotFoundMarker(importPath))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("resolve import %q in %s: %w", importPath, path, err)
		}

		content, err := resolveFile(canon, visited)
		if err != nil {
			return "", err
		}
		b.WriteString(Marker(importPath))
		b.WriteString("\n")
		b.WriteString(content)
	}
	b.WriteString(src[last:])
	return b.String(), nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(filepath.Clean(abs))
}
