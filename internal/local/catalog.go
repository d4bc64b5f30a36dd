package local

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrModelNotFound means the model file is not on disk. It is a deployment
// problem and is reported before any load is attempted.
var ErrModelNotFound = errors.New("local: model file not found")

// CatalogEntry describes a quantized model the service knows how to run.
type CatalogEntry struct {
	Name        string
	File        string
	Description string
}

var catalog = map[string]CatalogEntry{
	"phi3-mini": {
		Name:        "phi3-mini",
		File:        "Phi-3-mini-4k-instruct-q4.gguf",
		Description: "Phi-3 Mini 4K instruct, 4-bit",
	},
	"qwen2-1.5b": {
		Name:        "qwen2-1.5b",
		File:        "qwen2-1_5b-instruct-q4_0.gguf",
		Description: "Qwen2 1.5B instruct, 4-bit",
	},
	"llama2-7b-chat": {
		Name:        "llama2-7b-chat",
		File:        "llama-2-7b-chat.Q4_0.gguf",
		Description: "Llama 2 7B chat, 4-bit",
	},
}

// Catalog returns the known models sorted by name.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(catalog))
	for _, e := range catalog {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResolveModelPath maps a catalog name to <modelsDir>/<name>/<file>, or
// accepts a direct path to a .gguf file. The file must exist.
func ResolveModelPath(modelsDir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty model name", ErrModelNotFound)
	}

	var path string
	if entry, ok := catalog[name]; ok {
		path = filepath.Join(modelsDir, entry.Name, entry.File)
	} else if strings.EqualFold(filepath.Ext(name), ".gguf") {
		path = name
	} else {
		return "", fmt.Errorf("%w: unknown model %q", ErrModelNotFound, name)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrModelNotFound, path)
	}
	return path, nil
}
