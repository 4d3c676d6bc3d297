package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JakeFAU/patent-collector/internal/patent"
)

type metadataSummary struct {
	Title  *string `json:"title"`
	Status *string `json:"status"`
}

// List scans the base directory for identifier directories, sorted by name.
// A readable metadata document marks an entry Done regardless of registry
// membership; otherwise isSkipped decides between Skipped and Pending.
func (s *Store) List(isSkipped func(id string) bool) ([]patent.Listing, error) {
	entries, err := os.ReadDir(s.cfg.BaseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []patent.Listing{}, nil
		}
		return nil, fmt.Errorf("read base dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), DirSuffix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	out := make([]patent.Listing, 0, len(names))
	for _, name := range names {
		id := strings.TrimSuffix(name, DirSuffix)
		item := patent.Listing{
			ID:           id,
			Status:       patent.RecordPending,
			Title:        patent.NotApplicable,
			PatentStatus: patent.DefaultUnknown,
		}
		if isSkipped != nil && isSkipped(id) {
			item.Status = patent.RecordSkipped
		}
		if summary, ok := readSummary(filepath.Join(s.cfg.BaseDir, name, MetadataFile)); ok {
			item.Status = patent.RecordDone
			item.Title = ""
			if summary.Title != nil {
				item.Title = *summary.Title
			}
			if summary.Status != nil {
				item.PatentStatus = *summary.Status
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func readSummary(p string) (metadataSummary, bool) {
	// #nosec G304 -- path is built from the configured base directory.
	data, err := os.ReadFile(p)
	if err != nil {
		return metadataSummary{}, false
	}
	var summary metadataSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return metadataSummary{}, false
	}
	return summary, true
}
