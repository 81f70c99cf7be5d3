package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirStore writes objects as files under Root; key separators become
// subdirectories.
type DirStore struct {
	Root string
}

var _ Store = DirStore{}

func (d DirStore) Put(ctx context.Context, key string, body []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("invalid archive key %q", key)
	}
	path := filepath.Join(d.Root, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
