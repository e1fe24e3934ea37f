package export

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
)

// ArchiveName returns the download name for results packaged at t.
func ArchiveName(t time.Time) string {
	return "results_" + t.Format("20060102_150405") + ".zip"
}

// Zip packs the regular files directly inside dir into a ZIP at dest.
// Entries are sorted by name.
func Zip(dir, dest string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return core.WrapError(core.KindExportFailed, "read bundle", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return core.Errorf(core.KindExportFailed, "nothing to archive in %s", dir)
	}
	sort.Strings(names)

	return writeFile(dest, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, name := range names {
			if err := addFile(zw, filepath.Join(dir, name), name); err != nil {
				zw.Close()
				return err
			}
		}
		if err := zw.Close(); err != nil {
			return core.WrapError(core.KindExportFailed, "finish archive", err)
		}
		return nil
	})
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return core.WrapError(core.KindExportFailed, "open "+name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return core.WrapError(core.KindExportFailed, "stat "+name, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return core.WrapError(core.KindExportFailed, "header "+name, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return core.WrapError(core.KindExportFailed, "add "+name, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return core.WrapError(core.KindExportFailed, "copy "+name, err)
	}
	return nil
}
