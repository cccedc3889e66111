package filestore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ldi/agrasandhani/pkg/models"
	"gopkg.in/yaml.v3"
)

// DocumentVersion is written into every file.
const DocumentVersion = "1.0.0"

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat accepts the format names and common file extensions.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// FormatFromPath guesses the format from the file extension, defaulting to
// JSON.
func FormatFromPath(path string) Format {
	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return FormatJSON
	}
	return f
}

// Document is the on-disk layout.
type Document struct {
	Tasks       []models.Task `json:"tasks" yaml:"tasks" toml:"tasks"`
	Version     string        `json:"version" yaml:"version" toml:"version"`
	LastUpdated time.Time     `json:"lastUpdated" yaml:"lastUpdated" toml:"lastUpdated"`
}

func NewDocument(tasks []models.Task, now time.Time) Document {
	if tasks == nil {
		tasks = []models.Task{}
	}
	return Document{Tasks: tasks, Version: DocumentVersion, LastUpdated: now}
}

func Encode(doc Document, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		return data, nil
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode toml: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unsupported format: %s", format)
}

func Decode(data []byte, format Format) (Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatJSON, "":
		err = json.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatTOML:
		_, err = toml.Decode(string(data), &doc)
	default:
		return Document{}, fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to decode %s document: %w", format, err)
	}
	return doc, nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
