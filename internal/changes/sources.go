package changes

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ErrInvalidRange is returned for a git range that is not BASE..HEAD.
var ErrInvalidRange = errors.New("invalid git range: expected BASE..HEAD")

const devNull = "/dev/null"

// FromList reads one path per line. Blank lines and lines starting with #
// are skipped. Relative paths are resolved against root.
func FromList(root string, r io.Reader) (Set, error) {
	var paths []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return Set{}, fmt.Errorf("reading file list: %w", err)
	}
	return NewSetRelative(root, paths...), nil
}

// FromPatch collects the files touched by a unified diff. Both the old and
// the new name of every file diff count, so a rename touches two paths.
func FromPatch(root string, r io.Reader) (Set, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Set{}, fmt.Errorf("reading patch: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return NewSetRelative(root), nil
	}

	fileDiffs, err := diff.ParseMultiFileDiff(data)
	if err != nil {
		return Set{}, fmt.Errorf("parsing patch: %w", err)
	}

	var paths []string
	for _, fd := range fileDiffs {
		paths = append(paths, patchPaths(fd.OrigName, fd.NewName)...)
	}
	return NewSetRelative(root, paths...), nil
}

// patchPaths returns the old and new names of one file diff. The a/ and b/
// prefixes git puts on diff headers are stripped only when both sides carry
// them, so a --no-prefix patch keeps top-level directories named a or b.
func patchPaths(orig, updated string) []string {
	orig, updated = strings.TrimSpace(orig), strings.TrimSpace(updated)
	hasPrefix := func(name, prefix string) bool {
		return name == devNull || strings.HasPrefix(name, prefix)
	}
	strip := hasPrefix(orig, "a/") && hasPrefix(updated, "b/") && (orig != devNull || updated != devNull)

	var out []string
	for _, name := range []string{orig, updated} {
		if name == "" || name == devNull {
			continue
		}
		if strip {
			name = name[2:]
		}
		out = append(out, name)
	}
	return out
}

// SplitRange parses BASE..HEAD.
func SplitRange(rng string) (base, head string, err error) {
	parts := strings.Split(rng, "..")
	if strings.Contains(rng, "...") || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRange, rng)
	}
	return parts[0], parts[1], nil
}
