package reference

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadCatalog читает все YAML-справочники из директории. Имя справочника —
// из поля name либо из имени файла.
func LoadCatalog(dir string) (map[string]Directory, error) {
	result := make(map[string]Directory)
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var d Directory
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		key := d.Name
		if key == "" {
			key = strings.TrimSuffix(name, filepath.Ext(name))
		}
		result[key] = d
	}
	return result, nil
}
