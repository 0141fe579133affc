package preflight

import (
	"fmt"
	"os"
	"time"

	"stitch/internal/config"
	"stitch/internal/mapping"
)

// DatabaseProbe reports the current mapping database snapshot.
type DatabaseProbe struct {
	Present    bool
	Path       string
	SizeBytes  int64
	ModifiedAt time.Time
}

// ProbeDatabase stats the mapping database without opening it, so status
// displays work while the daemon holds the file.
func ProbeDatabase(cfg *config.Config) DatabaseProbe {
	path := mapping.DatabasePath(cfg)
	if path == "" {
		return DatabaseProbe{}
	}
	info, err := os.Stat(path)
	if err != nil {
		return DatabaseProbe{Path: path}
	}
	return DatabaseProbe{
		Present:    true,
		Path:       path,
		SizeBytes:  info.Size(),
		ModifiedAt: info.ModTime(),
	}
}

// Detail renders a display-friendly summary for status UIs.
func (p DatabaseProbe) Detail() string {
	if !p.Present {
		return "No mapping database yet (created on first daemon start)"
	}
	return fmt.Sprintf("%s (%d KiB, updated %s)", p.Path, p.SizeBytes/1024, p.ModifiedAt.Format("2006-01-02 15:04"))
}
