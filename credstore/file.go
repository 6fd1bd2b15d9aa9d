package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// File is a Store backed by a JSON or YAML document mapping keys to string
// values. The format follows the file extension; anything other than .yaml
// and .yml is JSON. The document is re-read on every Get so that logins and
// logouts performed by other processes are observed.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a File store for path. The file need not exist yet.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

func (f *File) Get(key string) (string, bool, error) {
	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	raw, ok := values[key]
	if !ok || raw == nil {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("credential %q in %s is not a string", key, f.path)
	}
	return s, true, nil
}

// Set writes value under key, creating the file if needed.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

// Delete removes key from the file.
func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return f.save(values)
}

func (f *File) isYAML() bool {
	switch strings.ToLower(filepath.Ext(f.path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func (f *File) load() (map[string]any, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	values := map[string]any{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return values, nil
	}
	if f.isYAML() {
		err = yaml.Unmarshal(data, &values)
	} else {
		err = json.Unmarshal(data, &values)
	}
	if err != nil {
		return nil, fmt.Errorf("parse credential file %s: %w", f.path, err)
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

func (f *File) save(values map[string]any) error {
	var (
		data []byte
		err  error
	)
	if f.isYAML() {
		data, err = yaml.Marshal(values)
	} else {
		data, err = json.MarshalIndent(values, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode credential file: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credstore-*")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credential file: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}
