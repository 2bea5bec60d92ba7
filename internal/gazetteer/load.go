package gazetteer

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed capitals.json
var embedded []byte

// LoadEmbedded builds a gazetteer from the capital list compiled into the
// binary.
func LoadEmbedded() (*Gazetteer, error) {
	return parse(embedded)
}

// LoadFile builds a gazetteer from a JSON file on disk, replacing the
// embedded list entirely.
func LoadFile(path string) (*Gazetteer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading gazetteer file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Gazetteer, error) {
	var capitals []Capital
	if err := json.Unmarshal(data, &capitals); err != nil {
		return nil, fmt.Errorf("parsing gazetteer data: %w", err)
	}
	return New(capitals)
}
