// Package brand carries the product identity, read from the embedded
// brand.json so forks can rebrand by editing one file.
package brand

import (
	_ "embed"
	"encoding/json"
	"path/filepath"
)

//go:embed brand.json
var brandJSON []byte

// Identity is the parsed contents of brand.json.
type Identity struct {
	Name             string `json:"name"`
	LowerName        string `json:"lowerName"`
	Vendor           string `json:"vendor"`
	Website          string `json:"website"`
	Repository       string `json:"repository"`
	Description      string `json:"description"`
	DefaultConfigDir string `json:"defaultConfigDir"`
	DefaultDataDir   string `json:"defaultDataDir"`
	BinaryName       string `json:"binaryName"`
	ConfigFileName   string `json:"configFileName"`
}

var id = mustParse()

func mustParse() Identity {
	var out Identity
	if err := json.Unmarshal(brandJSON, &out); err != nil {
		panic("brand.json: " + err.Error())
	}
	return out
}

// Get returns the parsed identity.
func Get() Identity { return id }

// The fields the binary prints, resolved at package init.
var (
	Name        = id.Name
	Description = id.Description
	BinaryName  = id.BinaryName
)

// Build metadata, stamped via -ldflags in release builds.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// DefaultConfigPath returns the stock configuration file location.
func DefaultConfigPath() string {
	return filepath.Join(id.DefaultConfigDir, id.ConfigFileName)
}
