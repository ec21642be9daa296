package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/praetorian-inc/annomerge/pkg/types"
)

// archive files documents by content ID as documents/<id[:2]>/<id[2:]>.xml.
type archive struct {
	root string
}

func (a *archive) path(id types.ContentID) string {
	name := id.String()
	return filepath.Join(a.root, name[:2], name[2:]+".xml")
}

// put writes content unless a document with the same ID is already filed.
func (a *archive) put(id types.ContentID, content []byte) error {
	path := a.path(id)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".doc-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (a *archive) get(id types.ContentID) ([]byte, error) {
	content, err := os.ReadFile(a.path(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("document %s is missing from the archive", id)
	}
	return content, err
}
