// Package loader parses agent definition documents: a YAML frontmatter block
// (name, description, capabilities, model) delimited by ---, followed by a
// free-text body used verbatim as the agent's system prompt.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/caravel-ai/caravel/core"
)

// maxDefinitionSize bounds a single definition file (1 MiB).
const maxDefinitionSize = 1 << 20

// Definition is one parsed agent document.
type Definition struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Capabilities []string `yaml:"capabilities"`
	// Model optionally pins the agent to a "provider/name" model instead of
	// the runtime default.
	Model string `yaml:"model"`
	// Persona is the document body below the frontmatter, verbatim.
	Persona string `yaml:"-"`
	// Path records where the definition was loaded from, empty for Parse.
	Path string `yaml:"-"`
}

// Parse extracts a Definition from raw document content.
func Parse(content string) (*Definition, error) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "---") {
		return nil, &core.ValidationError{Field: "frontmatter", Message: "missing opening --- delimiter"}
	}

	parts := strings.SplitN(trimmed[3:], "\n---", 2)
	if len(parts) != 2 {
		return nil, &core.ValidationError{Field: "frontmatter", Message: "missing closing --- delimiter"}
	}

	var def Definition
	if err := yaml.Unmarshal([]byte(parts[0]), &def); err != nil {
		return nil, &core.ValidationError{Field: "frontmatter", Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if def.Name == "" {
		return nil, &core.ValidationError{Field: "name", Message: "is required"}
	}

	body := parts[1]
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}
	def.Persona = strings.TrimSpace(body)
	return &def, nil
}

// LoadFile reads and parses a single definition file.
func LoadFile(path string) (*Definition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat definition %s: %w", path, err)
	}
	if info.Size() > maxDefinitionSize {
		return nil, fmt.Errorf("definition %s too large (%d bytes, max %d)", path, info.Size(), maxDefinitionSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition %s: %w", path, err)
	}
	def, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse definition %s: %w", path, err)
	}
	def.Path = path
	return def, nil
}

// LoadDir parses every *.md file directly under dir, sorted by filename for
// deterministic registration order. Duplicate agent names are an error.
func LoadDir(dir string) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read agent dir %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	seen := map[string]string{}
	var defs []*Definition
	for _, path := range paths {
		def, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[def.Name]; ok {
			return nil, fmt.Errorf("duplicate agent name %q in %s (already defined in %s)", def.Name, path, prev)
		}
		seen[def.Name] = path
		defs = append(defs, def)
	}
	return defs, nil
}
