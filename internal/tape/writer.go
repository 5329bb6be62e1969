package tape

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"tapeingest/internal/errs"
)

// Encode writes one CSV row per tick: timestamp_ns,label,price,volume.
// There is no header. It returns the number of rows written.
func Encode(w io.Writer, seq iter.Seq[Tick]) (int, error) {
	cw := csv.NewWriter(w)
	row := make([]string, 4)
	n := 0
	for t := range seq {
		row[0] = strconv.FormatInt(t.Timestamp, 10)
		row[1] = t.Label
		row[2] = FormatPrice(t.Price)
		row[3] = strconv.FormatInt(t.Volume, 10)
		if err := cw.Write(row); err != nil {
			return n, err
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}

// FormatPrice renders d in plain decimal notation, keeping its scale:
// "100.0" stays "100.0" and 1e3 becomes "1000".
func FormatPrice(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// WriteFile creates or replaces path with the encoded ticks. The rows go to a
// temporary file in the destination's directory which is renamed over it only
// after a complete, synced write, so a failed run leaves any previous file
// untouched. A symlinked path is followed and its target replaced; an existing
// file keeps its permission bits, a new one gets 0644.
func WriteFile(path string, seq iter.Seq[Tick]) (int, error) {
	path, mode, err := destination(path)
	if err != nil {
		return 0, err
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, &errs.IOError{Op: "create", Path: path, Err: err}
	}
	tmp := f.Name()
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	bw := bufio.NewWriterSize(f, 1<<16)
	n, err := Encode(bw, seq)
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		return n, &errs.IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		return n, &errs.IOError{Op: "sync", Path: path, Err: err}
	}
	if err := f.Chmod(mode); err != nil {
		return n, &errs.IOError{Op: "chmod", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return n, &errs.IOError{Op: "close", Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		committed = true
		return n, &errs.IOError{Op: "rename", Path: path, Err: err}
	}
	committed = true
	return n, nil
}

// destination resolves symlinks in path and reports the mode the replacement
// should carry.
func destination(path string) (string, os.FileMode, error) {
	resolved, err := filepath.EvalSymlinks(path)
	switch {
	case err == nil:
		path = resolved
	case !errors.Is(err, fs.ErrNotExist):
		return "", 0, &errs.IOError{Op: "resolve", Path: path, Err: err}
	default:
		// A dangling link still points at the file to create.
		if target, lerr := os.Readlink(path); lerr == nil {
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(path), target)
			}
			path = target
		}
	}

	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return path, 0o644, nil
	}
	return path, fi.Mode().Perm(), nil
}
