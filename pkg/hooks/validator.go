package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/driftfs/driftfs/internal/logger"
)

// DefaultMaxFileSize is the size ceiling the validator enforces when a
// schema does not set its own.
const DefaultMaxFileSize = 10 << 20

// frontmatterDelimiter separates YAML frontmatter from document content.
var frontmatterDelimiter = []byte("---")

// Schema describes the frontmatter contract for one document type. Schemas
// are loaded from <dir>/<name>.yaml.
type Schema struct {
	Name           string   `yaml:"name"`
	RequiredFields []string `yaml:"required_fields"`
	OptionalFields []string `yaml:"optional_fields"`
	MaxSize        uint64   `yaml:"max_size"`
}

// Validator is a synchronous hook that checks file size against a ceiling
// and validates YAML frontmatter against named schemas. It blocks writes
// over the ceiling or missing a required field, and warns when a file
// crosses 80% of the ceiling or names a schema that is not loaded.
type Validator struct {
	dir     string
	maxSize uint64

	mu      sync.RWMutex
	schemas map[string]*Schema

	watcher *fsnotify.Watcher
}

// NewValidator loads schemas from dir and returns the validator. An empty
// dir disables schema validation; size checks still apply.
func NewValidator(dir string) (*Validator, error) {
	v := &Validator{
		dir:     dir,
		maxSize: DefaultMaxFileSize,
		schemas: make(map[string]*Schema),
	}
	if dir != "" {
		if err := v.loadSchemas(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// WithMaxSize overrides the default size ceiling.
func (v *Validator) WithMaxSize(max uint64) *Validator {
	v.maxSize = max
	return v
}

// Name implements Hook.
func (v *Validator) Name() string { return "frontmatter-validator" }

// Priority implements Hook. The validator runs before workflow hooks so a
// blocked write never triggers downstream automation.
func (v *Validator) Priority() int { return 100 }

// Execute implements Hook.
func (v *Validator) Execute(_ context.Context, ev *Event) (Decision, error) {
	size := ev.Size
	if size == 0 {
		size = uint64(len(ev.Data))
	}

	sizeDecision := v.checkSize(size)
	if sizeDecision.Verdict == Block {
		return sizeDecision, nil
	}

	contentDecision, err := v.validateContent(ev.Data, ev.Schema)
	if err != nil {
		return Decision{}, err
	}
	if contentDecision.Verdict == Block {
		return contentDecision, nil
	}

	// Neither blocked; surface whichever warned.
	if sizeDecision.Verdict == Warn {
		return sizeDecision, nil
	}
	return contentDecision, nil
}

// checkSize blocks files over the ceiling and warns past 80% of it.
func (v *Validator) checkSize(size uint64) Decision {
	switch {
	case size > v.maxSize:
		return Decision{
			Verdict: Block,
			Message: fmt.Sprintf("file size %d exceeds maximum %d", size, v.maxSize),
		}
	case size > v.maxSize*80/100:
		return Decision{
			Verdict: Warn,
			Message: fmt.Sprintf("file size %d approaching maximum %d", size, v.maxSize),
		}
	default:
		return Decision{Verdict: Allow}
	}
}

func (v *Validator) validateContent(data []byte, schemaName string) (Decision, error) {
	frontmatter, err := parseFrontmatter(data)
	if err != nil {
		return Decision{}, err
	}
	if schemaName == "" || frontmatter == nil {
		return Decision{Verdict: Allow}, nil
	}

	v.mu.RLock()
	schema, ok := v.schemas[schemaName]
	v.mu.RUnlock()
	if !ok {
		return Decision{
			Verdict: Warn,
			Message: fmt.Sprintf("schema %q not loaded", schemaName),
		}, nil
	}

	for _, field := range schema.RequiredFields {
		if _, present := frontmatter[field]; !present {
			return Decision{
				Verdict: Block,
				Message: fmt.Sprintf("missing required field: %s", field),
			}, nil
		}
	}
	return Decision{Verdict: Allow}, nil
}

// parseFrontmatter extracts the YAML block between leading and closing "---"
// lines. Content without frontmatter, or with an unterminated block, yields
// nil without error.
func parseFrontmatter(data []byte) (map[string]any, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(trimmed, frontmatterDelimiter) {
		return nil, nil
	}
	rest := trimmed[len(frontmatterDelimiter):]
	newline := bytes.IndexByte(rest, '\n')
	if newline < 0 {
		return nil, nil
	}
	rest = rest[newline+1:]

	end := bytes.Index(rest, append([]byte("\n"), frontmatterDelimiter...))
	if end < 0 {
		return nil, nil
	}
	block := rest[:end]

	fields := make(map[string]any)
	if err := yaml.Unmarshal(block, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	return fields, nil
}

// Schemas returns the names of the loaded schemas.
func (v *Validator) Schemas() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.schemas))
	for name := range v.schemas {
		names = append(names, name)
	}
	return names
}

// loadSchemas replaces the schema set with the contents of the schema dir.
func (v *Validator) loadSchemas() error {
	entries, err := os.ReadDir(v.dir)
	if err != nil {
		return fmt.Errorf("failed to read schema directory %s: %w", v.dir, err)
	}

	schemas := make(map[string]*Schema)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		schema, err := loadSchemaFile(filepath.Join(v.dir, name))
		if err != nil {
			logger.Warn("skipping unreadable schema",
				"schema", name,
				logger.KeyError, err)
			continue
		}
		if schema.Name == "" {
			schema.Name = strings.TrimSuffix(name, ".yaml")
		}
		schemas[schema.Name] = schema
	}

	v.mu.Lock()
	v.schemas = schemas
	v.mu.Unlock()
	logger.Debug("schemas loaded", "dir", v.dir, "count", len(schemas))
	return nil
}

func loadSchemaFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", path, err)
	}
	return &schema, nil
}

// Watch reloads the schema set whenever the schema directory changes. It
// returns immediately; the watch goroutine stops when ctx is cancelled.
func (v *Validator) Watch(ctx context.Context) error {
	if v.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create schema watcher: %w", err)
	}
	if err := watcher.Add(v.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch schema directory %s: %w", v.dir, err)
	}
	v.watcher = watcher

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				logger.Debug("schema directory changed", logger.KeyPath, event.Name)
				if err := v.loadSchemas(); err != nil {
					logger.Error("schema reload failed", logger.KeyError, err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("schema watcher error", logger.KeyError, err)
			}
		}
	}()
	return nil
}
