package export

import (
	"log/slog"
	"path/filepath"

	"github.com/JonMunkholm/moodlelogsmart/internal/classify"
	"github.com/JonMunkholm/moodlelogsmart/internal/core"
)

// Bundle file names.
const (
	EnrichedCSV  = "enriched_log.csv"
	EnrichedXES  = "enriched_log.xes"
	BloomOnlyCSV = "enriched_log_bloom_only.csv"
	BloomOnlyXES = "enriched_log_bloom_only.xes"
)

// Options selects optional outputs.
type Options struct {
	XES bool
}

// WriteBundle writes the full event log and, when any event has a Bloom
// level, a Bloom-only log into dir. It returns the files written keyed by
// file name.
func WriteBundle(dir string, events []core.EnrichedEvent, opts Options) (map[string]string, error) {
	files := make(map[string]string)

	write := func(name string, evs []core.EnrichedEvent, fn func(string, []core.EnrichedEvent) error) error {
		path := filepath.Join(dir, name)
		if err := fn(path, evs); err != nil {
			return err
		}
		files[name] = path
		return nil
	}

	if err := write(EnrichedCSV, events, WriteCSVFile); err != nil {
		return nil, err
	}
	if opts.XES {
		if err := write(EnrichedXES, events, WriteXESFile); err != nil {
			return nil, err
		}
	}

	if bloom := classify.BloomOnly(events); len(bloom) > 0 {
		if err := write(BloomOnlyCSV, bloom, WriteCSVFile); err != nil {
			return nil, err
		}
		if opts.XES {
			if err := write(BloomOnlyXES, bloom, WriteXESFile); err != nil {
				return nil, err
			}
		}
	}

	slog.Info("export complete", "dir", dir, "files", len(files), "events", len(events))
	return files, nil
}
