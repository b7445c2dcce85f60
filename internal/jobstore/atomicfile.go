package jobstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// writeJSONAtomic serialises v as UTF-8 JSON with a tab indent and sorted
// map keys (encoding/json sorts map keys for us), then writes it via a
// temp-file-in-the-same-directory-then-rename so every mutation is
// observable as a single atomic update, never a partially written file.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
