package client

import (
	"encoding/json"
	"os"
	"path"
)

// Prefs remembers the last nickname and relay so the client can start
// without arguments.
type Prefs struct {
	Nickname string `json:"nickname"`
	URL      string `json:"url"`
}

func storageDir() string {
	homeDir, _ := os.UserHomeDir()
	return path.Join(homeDir, ".goChatTUIClient")
}

func prefsPath(dir string) string {
	return path.Join(dir, "prefs.json")
}

// LoadPrefs reads prefs from dir, or the default directory when dir is
// empty. A missing or corrupt file yields zero prefs.
func LoadPrefs(dir string) Prefs {
	if dir == "" {
		dir = storageDir()
	}
	filePath := prefsPath(dir)
	var prefs Prefs
	if !fileExists(filePath) {
		return prefs
	}
	content, err := os.ReadFile(filePath)
	if err != nil {
		return Prefs{}
	}
	if err := json.Unmarshal(content, &prefs); err != nil {
		return Prefs{}
	}
	return prefs
}

func fileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}

func SavePrefs(dir string, prefs Prefs) error {
	if dir == "" {
		dir = storageDir()
	}
	bytes, err := json.MarshalIndent(&prefs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(prefsPath(dir), bytes, 0o644)
}
