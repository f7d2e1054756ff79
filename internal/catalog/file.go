// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/mlbe/mlbe-runner/internal/orchestrator"
)

type (
	// FileCatalog serves implementations from a YAML document loaded once.
	//
	//	implementations:
	//	  - id: 42
	//	    language: python
	//	    repo_url: https://github.com/acme/impl-42
	//	    revision: main
	//	    file_path: app.py
	FileCatalog struct {
		path  string
		byID  map[int64]orchestrator.ImplementationRef
		order []int64
	}

	catalogFile struct {
		Implementations []orchestrator.ImplementationRef `yaml:"implementations"`
	}
)

// LoadFile reads and validates a YAML catalog.
func LoadFile(fs afero.Fs, path string) (*FileCatalog, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var doc catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	c := &FileCatalog{path: path, byID: make(map[int64]orchestrator.ImplementationRef, len(doc.Implementations))}
	for i, impl := range doc.Implementations {
		if err := impl.Validate(fmt.Sprintf("%s entry %d", path, i+1)); err != nil {
			return nil, err
		}
		if _, dup := c.byID[impl.ID]; dup {
			return nil, fmt.Errorf("catalog %s: implementation %d is listed twice", path, impl.ID)
		}
		c.byID[impl.ID] = impl
		c.order = append(c.order, impl.ID)
	}
	return c, nil
}

// Implementation returns the entry with the given id.
func (c *FileCatalog) Implementation(_ context.Context, id int64) (orchestrator.ImplementationRef, error) {
	impl, ok := c.byID[id]
	if !ok {
		return orchestrator.ImplementationRef{}, &NotFoundError{ID: id, Source: c.path}
	}
	return impl, nil
}

// List returns every entry in file order.
func (c *FileCatalog) List() []orchestrator.ImplementationRef {
	out := make([]orchestrator.ImplementationRef, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
