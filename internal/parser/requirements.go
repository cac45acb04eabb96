package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ifc-viewer/backend/internal/models"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Requirement file encodings.
const (
	RequirementsYAML = "yaml"
	RequirementsTOML = "toml"
	RequirementsJSON = "json"
)

// RequirementsFormat maps a file name to its encoding by extension.
func RequirementsFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return RequirementsYAML, nil
	case ".toml":
		return RequirementsTOML, nil
	case ".json":
		return RequirementsJSON, nil
	}
	return "", fmt.Errorf("unsupported requirements file: %s", filepath.Base(path))
}

// ParseRequirements reads a requirement set from a YAML, TOML or JSON file.
func ParseRequirements(filePath string) (*models.RequirementSet, error) {
	format, err := RequirementsFormat(filePath)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseRequirementsFromReader(file, format)
}

// ParseRequirementsFromReader parses a requirement set in the given encoding.
func ParseRequirementsFromReader(r io.Reader, format string) (*models.RequirementSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rs models.RequirementSet
	switch format {
	case RequirementsYAML:
		err = yaml.Unmarshal(data, &rs)
	case RequirementsTOML:
		err = toml.Unmarshal(data, &rs)
	case RequirementsJSON:
		err = json.Unmarshal(data, &rs)
	default:
		return nil, fmt.Errorf("unsupported requirements format: %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s requirements: %w", format, err)
	}
	return &rs, nil
}
