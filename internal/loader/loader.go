// Package loader reads QA files from disk and writes dedup results back.
package loader

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

//go:embed qa_file.schema.json
var qaFileSchemaJSON string

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// LoadFiles reads every path in order and concatenates their records.
//
// Each file must be a JSON array of objects. Records without an id are
// given "<file stem>_<n>" so their source label resolves back to the file
// they came from. n is the record's position among all records of files
// sharing that stem, so the same file listed twice, or two files with one
// base name in different directories, never produce the same id. An n
// already used by a supplied id is skipped.
func LoadFiles(paths []string) ([]types.RawQARecord, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files")
	}

	files := make([]fileRecords, 0, len(paths))
	for _, path := range paths {
		records, err := readFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, fileRecords{stem: fileStem(path), records: records})
	}
	return assignIDs(files), nil
}

// LoadFile reads and validates a single QA file. Missing ids become
// "<file stem>_<index>".
func LoadFile(path string) ([]types.RawQARecord, error) {
	records, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return assignIDs([]fileRecords{{stem: fileStem(path), records: records}}), nil
}

type fileRecords struct {
	stem    string
	records []types.RawQARecord
}

func readFile(path string) ([]types.RawQARecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	records, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func fileStem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// assignIDs fills missing ids and concatenates the files.
func assignIDs(files []fileRecords) []types.RawQARecord {
	taken := make(map[string]struct{})
	for _, f := range files {
		for _, r := range f.records {
			if hasID(r) {
				taken[*r.ID] = struct{}{}
			}
		}
	}

	offset := make(map[string]int)
	var all []types.RawQARecord
	for _, f := range files {
		base := offset[f.stem]
		extra := 0
		for i := range f.records {
			if hasID(f.records[i]) {
				continue
			}
			for {
				id := fmt.Sprintf("%s_%d", f.stem, base+i+extra)
				if _, used := taken[id]; !used {
					taken[id] = struct{}{}
					f.records[i].ID = types.StringPtr(id)
					break
				}
				extra++
			}
		}
		offset[f.stem] = base + len(f.records) + extra
		all = append(all, f.records...)
	}
	return all
}

func hasID(r types.RawQARecord) bool {
	return r.ID != nil && strings.TrimSpace(*r.ID) != ""
}

// Decode validates raw JSON against the QA file schema and decodes it.
// Ids are left untouched.
func Decode(raw []byte) ([]types.RawQARecord, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var records []types.RawQARecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}
	return records, nil
}

// WriteJSON writes v to path as JSON indented with four spaces. Non-ASCII
// text is written as-is.
func WriteJSON(path string, v interface{}) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("qa_file.schema.json", strings.NewReader(qaFileSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("qa_file.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("trailing content after JSON array")
	}
	return value, nil
}
