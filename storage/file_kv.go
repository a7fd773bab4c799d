package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"melhor-casa/utils"
)

// FileKV keeps one JSON file per key inside a profile directory.
type FileKV struct {
	dir    string
	logger *utils.Logger
}

// NewFileKV creates the profile directory if needed.
func NewFileKV(dir string, logger *utils.Logger) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("kv: create profile dir: %w", err)
	}
	return &FileKV{dir: dir, logger: logger}, nil
}

func (kv *FileKV) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("kv: invalid key %q", key)
	}
	return filepath.Join(kv.dir, key+".json"), nil
}

// Get decodes the value stored under key into dst, which must be a non-nil
// pointer. Malformed content is logged and reported as absent.
func (kv *FileKV) Get(key string, dst any) (bool, error) {
	path, err := kv.path(key)
	if err != nil {
		return false, err
	}
	target := reflect.ValueOf(dst)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return false, fmt.Errorf("kv: get %s: destination must be a non-nil pointer", key)
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kv: read %s: %w", key, err)
	}

	fresh := reflect.New(target.Elem().Type())
	if err := json.Unmarshal(raw, fresh.Interface()); err != nil {
		kv.logger.Warn("[kv] Malformed value for %s, using default: %v", key, err)
		return false, nil
	}
	target.Elem().Set(fresh.Elem())
	return true, nil
}

// Put replaces the value stored under key.
func (kv *FileKV) Put(key string, value any) error {
	path, err := kv.path(key)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", key, err)
	}
	return writeFileAtomic(path, raw)
}

// writeFileAtomic writes through a temp file in the same directory so a
// crash never leaves a half-written document behind.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
