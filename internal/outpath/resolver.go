package outpath

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"watermark/internal/faults"
)

// Mode selects how destination names are made unique.
type Mode int

const (
	// Deterministic names outputs {name}_mk{ext} and appends _1, _2, ... when the
	// destination already exists. Only safe with a single writer.
	Deterministic Mode = iota
	// UniqueSuffix appends a random hex token to every output name.
	UniqueSuffix
)

func (m Mode) String() string {
	switch m {
	case Deterministic:
		return "deterministic"
	case UniqueSuffix:
		return "unique-suffix"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

const (
	nameMarker      = "_mk"
	MinSuffixLength = 4
	MaxSuffixLength = 36
	maxCollisions   = 10000
)

// Options configures a Resolver.
type Options struct {
	InputRoot    string
	OutputRoot   string
	Recursive    bool
	Mode         Mode
	SuffixLength int
}

// Resolver maps source paths to output paths.
type Resolver struct {
	opts  Options
	token func(n int) string
}

// New validates opts and returns a Resolver.
func New(opts Options) (*Resolver, error) {
	if strings.TrimSpace(opts.OutputRoot) == "" {
		return nil, faults.Invalid("output root must be set")
	}
	if opts.Mode == UniqueSuffix && (opts.SuffixLength < MinSuffixLength || opts.SuffixLength > MaxSuffixLength) {
		return nil, faults.Invalid("suffix length %d must be within %d-%d", opts.SuffixLength, MinSuffixLength, MaxSuffixLength)
	}
	return &Resolver{opts: opts, token: randomHex}, nil
}

// Base returns the deterministic destination for source before any collision
// handling: the output root, the source's directory relative to the input root
// when traversal is recursive, and {name}_mk{ext}.
func (r *Resolver) Base(source string) (string, error) {
	dir := r.opts.OutputRoot
	if r.opts.Recursive && r.opts.InputRoot != "" {
		rel, err := filepath.Rel(r.opts.InputRoot, filepath.Dir(source))
		if err != nil {
			return "", faults.Wrap(faults.ErrFilesystem, "outpath", "relative dir", source, err)
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", faults.Wrap(faults.ErrFilesystem, "outpath", "relative dir", source+" is outside the input root", nil)
		}
		dir = filepath.Join(dir, rel)
	}
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, name+nameMarker+ext), nil
}

// Resolve returns the destination for source. In Deterministic mode the first
// free name among base, base_1, base_2, ... wins; in UniqueSuffix mode a random
// token is appended without checking the filesystem.
func (r *Resolver) Resolve(source string) (string, error) {
	base, err := r.Base(source)
	if err != nil {
		return "", err
	}
	if r.opts.Mode == UniqueSuffix {
		return withSuffix(base, r.token(r.opts.SuffixLength)), nil
	}

	candidate := base
	for i := 1; i <= maxCollisions; i++ {
		exists, err := pathExists(candidate)
		if err != nil {
			return "", faults.Wrap(faults.ErrFilesystem, "outpath", "stat", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = withSuffix(base, fmt.Sprintf("%d", i))
	}
	return "", faults.Wrap(faults.ErrFilesystem, "outpath", "resolve", fmt.Sprintf("no free name for %s after %d attempts", base, maxCollisions), nil)
}

// Ensure creates the parent directory of dest.
func Ensure(dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return faults.Wrap(faults.ErrFilesystem, "outpath", "create directory", filepath.Dir(dest), err)
	}
	return nil
}

func withSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + suffix + ext
}

func pathExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// randomHex returns n lowercase hex characters drawn from random UUIDs.
func randomHex(n int) string {
	var b strings.Builder
	b.Grow(n + 32)
	for b.Len() < n {
		id := uuid.New()
		b.WriteString(strings.ReplaceAll(id.String(), "-", ""))
	}
	return b.String()[:n]
}
