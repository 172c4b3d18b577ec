package model

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML schema description from path and initialises it.
func Load(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	db, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

// Parse decodes a YAML schema description and initialises it. Unknown keys
// are rejected.
func Parse(data []byte) (*Database, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var db Database
	if err := dec.Decode(&db); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if err := db.Initialize(); err != nil {
		return nil, err
	}
	return &db, nil
}

// Marshal renders the database back to YAML.
func Marshal(db *Database) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(db); err != nil {
		return nil, fmt.Errorf("marshal model: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
