// Package datastore keeps merge history in a self-contained directory: an
// annotation database plus, optionally, the raw documents it indexes.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/praetorian-inc/annomerge/pkg/store"
	"github.com/praetorian-inc/annomerge/pkg/types"
)

const (
	// DatabaseFile is the store file name inside a datastore directory.
	DatabaseFile = "annotations.db"
	// DocumentsDir holds raw documents when Options.KeepDocuments is set.
	DocumentsDir = "documents"
)

// Datastore is an opened datastore directory.
type Datastore struct {
	Path  string
	Store store.Store

	docs *archive // nil unless documents are kept
}

// Options configures datastore behavior.
type Options struct {
	// KeepDocuments archives each saved document so Content can return it.
	KeepDocuments bool
}

// Open opens or creates a datastore directory.
func Open(path string, opts Options) (*Datastore, error) {
	if path == "" {
		return nil, fmt.Errorf("datastore path is required")
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating datastore directory: %w", err)
	}

	// Keep the datastore out of version control.
	if err := os.WriteFile(filepath.Join(path, ".gitignore"), []byte("*\n"), 0644); err != nil {
		return nil, fmt.Errorf("writing .gitignore: %w", err)
	}

	ds := &Datastore{Path: path}
	if opts.KeepDocuments {
		ds.docs = &archive{root: filepath.Join(path, DocumentsDir)}
		if err := os.MkdirAll(ds.docs.root, 0755); err != nil {
			return nil, fmt.Errorf("creating documents directory: %w", err)
		}
	}

	s, err := store.New(store.Config{Path: filepath.Join(path, DatabaseFile)})
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	ds.Store = s
	return ds, nil
}

// KeepsDocuments reports whether raw documents are archived.
func (d *Datastore) KeepsDocuments() bool {
	return d.docs != nil
}

// Save records file under the content ID of content. An input already
// stored under the same URI and ID is left in place and Save reports
// false.
func (d *Datastore) Save(file *types.AnnotationFile, content []byte) (bool, error) {
	if file == nil {
		return false, fmt.Errorf("file is nil")
	}
	id := types.ComputeContentID(content)
	if d.docs != nil {
		if err := d.docs.put(id, content); err != nil {
			return false, fmt.Errorf("archiving %s: %w", file.URI, err)
		}
	}
	written, err := store.AddIfChanged(d.Store, file, id)
	if err != nil {
		return false, fmt.Errorf("storing %s: %w", file.URI, err)
	}
	return written, nil
}

// Content returns the raw document last saved for uri.
func (d *Datastore) Content(uri string) ([]byte, error) {
	if d.docs == nil {
		return nil, fmt.Errorf("datastore %s does not keep documents", d.Path)
	}
	rec, err := store.Lookup(d.Store, uri)
	if err != nil {
		return nil, err
	}
	return d.docs.get(rec.ContentID)
}

// Close closes the datastore and releases resources.
func (d *Datastore) Close() error {
	if d.Store != nil {
		return d.Store.Close()
	}
	return nil
}
