package scenarioconfig

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Load reads a catalog file, or the embedded default when path is empty.
// KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Catalog, []byte, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		data = b
	}

	cat, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cat, data, nil
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	cat, _, err := Load("")
	return cat, err
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return nil, err
	}

	if err := Validate(&cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Hash SHA256 of the canonical JSON form
// 리스크 스냅샷에 어떤 카탈로그로 계산했는지 기록하는 용도
func Hash(cat *Catalog) (string, error) {
	jsonBytes, err := json.Marshal(cat)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
