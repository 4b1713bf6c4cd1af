// Package catalogfeed decodes catalog ingestion records. YAML is a superset
// of JSON, so both formats go through the same decoder.
package catalogfeed

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tradein/internal/domain"
)

// Document is the top-level shape of a feed file.
type Document struct {
	Models []domain.CatalogRecord `json:"models" yaml:"models"`
}

// Parse decodes either a {models: [...]} document or a bare record list.
func Parse(data []byte) ([]domain.CatalogRecord, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("catalogfeed: payload is empty")
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("catalogfeed: decode: %w", err)
	}
	node := &root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}

	switch node.Kind {
	case yaml.SequenceNode:
		var records []domain.CatalogRecord
		if err := node.Decode(&records); err != nil {
			return nil, fmt.Errorf("catalogfeed: decode records: %w", err)
		}
		return records, nil
	case yaml.MappingNode:
		var doc Document
		if err := node.Decode(&doc); err != nil {
			return nil, fmt.Errorf("catalogfeed: decode document: %w", err)
		}
		return doc.Models, nil
	default:
		return nil, fmt.Errorf("catalogfeed: expected a list or a mapping at the top level")
	}
}

func LoadFile(path string) ([]domain.CatalogRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalogfeed: read %s: %w", path, err)
	}
	return Parse(data)
}
