package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store reserves durable locations for project artifacts and checks their
// existence. It never interprets file contents.
type Store interface {
	// ReservePath returns the path for one artifact of a project. The
	// naming scheme is deterministic and keyed by project id and kind, so
	// no two projects ever resolve to the same path.
	ReservePath(projectID int64, kind string) (string, error)
	Exists(path string) bool
}

// DiskStore keeps artifacts under a root directory, one subdirectory per
// project.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) ReservePath(projectID int64, kind string) (string, error) {
	if filepath.Base(kind) != kind || kind == "" || kind == "." {
		return "", fmt.Errorf("invalid artifact kind %q", kind)
	}
	dir := filepath.Join(s.root, "projects", fmt.Sprintf("%d", projectID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create project dir: %w", err)
	}
	return filepath.Join(dir, kind), nil
}

func (s *DiskStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
