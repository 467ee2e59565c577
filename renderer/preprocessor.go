package renderer

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var ppIncludeRe = regexp.MustCompile(`(?im)^#pragma\s+use\s+"([^"]+)"\s*$`)

type SourceFile struct {
	Filename string
}

func (s SourceFile) Contents() ([]byte, error) {
	return os.ReadFile(s.Filename)
}

// Includes recursively resolves the files referred to by "#pragma use"
// directives.
//
// The argument files are part of the returned list. Every file appears
// once, after all the files it includes.
func Includes(filenames ...string) ([]SourceFile, error) {
	var sources []SourceFile
	seen := map[string]bool{}
	for _, filename := range filenames {
		absFilename, err := filepath.Abs(filename)
		if err != nil {
			return nil, err
		}
		if err := includeRecursive(absFilename, seen, &sources); err != nil {
			return nil, err
		}
	}
	return sources, nil
}

func includeRecursive(absFilename string, seen map[string]bool, sources *[]SourceFile) error {
	if seen[absFilename] {
		return nil
	}
	// Mark the file before recursing so cycles terminate.
	seen[absFilename] = true

	currentFile := SourceFile{Filename: absFilename}
	shaderSource, err := currentFile.Contents()
	if err != nil {
		return err
	}
	for _, submatch := range ppIncludeRe.FindAllSubmatch(shaderSource, -1) {
		includedFile := string(submatch[1])
		if !filepath.IsAbs(includedFile) {
			includedFile = filepath.Join(filepath.Dir(absFilename), includedFile)
		} else {
			includedFile = filepath.Clean(includedFile)
		}
		if err := includeRecursive(includedFile, seen, sources); err != nil {
			return err
		}
	}
	*sources = append(*sources, currentFile)
	return nil
}

// Concat joins the contents of the files. The "#pragma use" directives are
// removed since the included files are already part of the result.
func Concat(sources []SourceFile) (string, error) {
	var b strings.Builder
	for _, s := range sources {
		c, err := s.Contents()
		if err != nil {
			return "", err
		}
		b.WriteString(ppIncludeRe.ReplaceAllString(string(c), ""))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Filenames returns the names of the files, e.g. to watch them for changes.
func Filenames(sources []SourceFile) []string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Filename
	}
	return names
}
