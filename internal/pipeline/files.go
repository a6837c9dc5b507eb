package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/planbiir/trackconv/internal/format"
	"github.com/planbiir/trackconv/internal/track"
)

// ExpandInputs resolves files and directories into the list of files to
// process. Directories contribute their GPX and KML files, sorted by name
// and without recursion. The output path is never returned as an input and
// duplicates are dropped.
func ExpandInputs(inputs []string, output string) ([]string, []*FileError) {
	var files []string
	var failures []*FileError
	seen := make(map[string]bool)
	outAbs, _ := filepath.Abs(output)

	add := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if abs == outAbs || seen[abs] {
			return
		}
		seen[abs] = true
		files = append(files, path)
	}

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			failures = append(failures, &FileError{Path: in, Stage: StageDiscover, Err: err})
			continue
		}

		if !info.IsDir() {
			if !format.IsSupported(in) {
				failures = append(failures, &FileError{
					Path:  in,
					Stage: StageDiscover,
					Err:   fmt.Errorf("%w: unsupported file extension", track.ErrInvalidParameter),
				})
				continue
			}
			add(in)
			continue
		}

		entries, err := os.ReadDir(in)
		if err != nil {
			failures = append(failures, &FileError{Path: in, Stage: StageDiscover, Err: err})
			continue
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if format.IsSupported(e.Name()) {
				add(filepath.Join(in, e.Name()))
			}
		}
	}
	return files, failures
}

type plannedOutput struct {
	path string
	kind format.Kind
}

// planOutputs maps each input to <dir>/<stem><ext>. Stems that would collide
// get a numeric suffix in input order.
func planOutputs(files []string, dir string, target format.Kind) []plannedOutput {
	out := make([]plannedOutput, len(files))
	used := make(map[string]bool, len(files))
	for i, f := range files {
		kind := target
		if kind == "" {
			in, err := format.KindFromPath(f)
			if err != nil {
				in = format.KML
			}
			kind = in.Other()
		}
		stem := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		name := stem + kind.Ext()
		for n := 2; used[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s_%d%s", stem, n, kind.Ext())
		}
		used[strings.ToLower(name)] = true
		out[i] = plannedOutput{path: filepath.Join(dir, name), kind: kind}
	}
	return out
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers never see a partial file. Errors wrap
// track.ErrWrite and leave nothing behind.
func WriteFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", track.ErrWrite, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("%w: %v", track.ErrWrite, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %v", track.ErrWrite, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", track.ErrWrite, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: %v", track.ErrWrite, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %v", track.ErrWrite, err)
	}
	return nil
}
