package catalog

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const (
	StandardsFile = "standards.yaml"
	RulesFile     = "rules.yaml"
	VisualFile    = "visual.yaml"
)

//go:embed data
var embedded embed.FS

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the catalog compiled into the binary
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(embedded, "data")
		if err != nil {
			defaultErr = err
			return
		}
		defaultCat, defaultErr = Load(sub)
	})
	return defaultCat, defaultErr
}

// LoadDir loads catalog files from a directory. Files missing from the
// directory fall back to the embedded copies; an empty dir means Default.
func LoadDir(dir string) (*Catalog, error) {
	if dir == "" {
		return Default()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog dir: %s is not a directory", dir)
	}
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return Load(overlayFS{top: os.DirFS(dir), base: sub})
}

// Load reads and validates the three catalog files from fsys.
// Structural errors (bad YAML, schema violations) fail the load; semantic
// problems are reported through Catalog.Issues.
func Load(fsys fs.FS) (*Catalog, error) {
	var sf standardsFile
	if err := decodeFile(fsys, StandardsFile, &sf); err != nil {
		return nil, err
	}
	var rf rulesFile
	if err := decodeFile(fsys, RulesFile, &rf); err != nil {
		return nil, err
	}
	var vf visualFile
	if err := decodeFile(fsys, VisualFile, &vf); err != nil {
		return nil, err
	}
	return build(&sf, &rf, &vf), nil
}

// Validate checks a single catalog file against its schema
func Validate(name string, data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%s: parse yaml: %w", name, err)
	}
	return validateDoc(name, doc)
}

func decodeFile(fsys fs.FS, name string, out interface{}) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := Validate(name, data); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode: %w", name, err)
	}
	return nil
}

func validateDoc(name string, doc interface{}) error {
	schema, err := compileSchema(name)
	if err != nil {
		return err
	}

	// Round-trip through JSON so the validator sees JSON-native types.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", name, err)
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("%s: unmarshal: %w", name, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%s does not match schema: %w", name, err)
	}
	return nil
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*jsonschema.Schema{}
)

func compileSchema(name string) (*jsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	if s, ok := schemaCache[name]; ok {
		return s, nil
	}

	base := name[:len(name)-len(filepath.Ext(name))]
	res := base + ".schema.json"
	b, err := embedded.ReadFile("data/schema/" + res)
	if err != nil {
		return nil, fmt.Errorf("no schema for %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(res, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile(res)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	schemaCache[name] = s
	return s, nil
}

// overlayFS serves files from top, falling back to base when absent
type overlayFS struct {
	top  fs.FS
	base fs.FS
}

func (o overlayFS) Open(name string) (fs.File, error) {
	f, err := o.top.Open(name)
	if err == nil {
		return f, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return o.base.Open(name)
	}
	return nil, err
}
