package convert

import (
	"path/filepath"
	"strings"
)

type targetKind uint8

const (
	targetFile targetKind = iota
	targetDir
	targetStream
	targetPages // converted pages handed back to the caller, see AppendTo
)

// Target is where an artifact is published.
type Target struct {
	kind targetKind
	path string
}

// ToFile publishes a single file at path. The parent directory must exist.
func ToFile(path string) Target {
	return Target{kind: targetFile, path: cleanPath(path)}
}

// ToDir publishes a loose-file collection as directory path. Only XOD
// with ExternalParts, expanded EPUB and image stacks write directories.
// The directory may exist if it is empty; one holding files is refused.
func ToDir(path string) Target {
	return Target{kind: targetDir, path: cleanPath(path)}
}

// cleanPath drops trailing separators and dot elements. An empty path
// stays empty so that checkTarget can reject it.
func cleanPath(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Clean(path)
}

// ToStream produces a pull-readable byte stream.
func ToStream() Target {
	return Target{kind: targetStream}
}

// Path returns the final path, or "" for streams.
func (t Target) Path() string {
	return t.path
}

// IsStream reports whether t is a stream target.
func (t Target) IsStream() bool {
	return t.kind == targetStream
}

func (t Target) String() string {
	switch t.kind {
	case targetDir:
		return "dir:" + t.path
	case targetStream:
		return "stream"
	case targetPages:
		return "pages"
	}
	return "file:" + t.path
}

// sidecarPath returns the path of a file published next to the target,
// with the target's extension replaced by suffix.
func (t Target) sidecarPath(suffix string) string {
	base := strings.TrimSuffix(t.path, filepath.Ext(t.path))
	return base + suffix
}

func checkTarget(s settings, t Target) error {
	if t.kind != targetStream && t.path == "" {
		return &OptionError{Field: "target", Value: t.String(), Reason: "empty path"}
	}
	switch {
	case t.kind == targetDir && !s.dirAllowed:
		return &OptionError{Field: "target", Value: t.String(), Reason: "format does not write directories"}
	case s.dirRequired && t.kind != targetDir:
		if t.kind == targetStream {
			return &OptionError{Field: "target", Value: t.String(), Reason: s.streamDenied}
		}
		return &OptionError{Field: "target", Value: t.String(), Reason: "needs a directory target"}
	case t.kind == targetStream && s.streamDenied != "":
		return &OptionError{Field: "target", Value: t.String(), Reason: s.streamDenied}
	}
	return nil
}
