package cache

import (
	"encoding/hex"
	"encoding/json"

	"github.com/fatih/structs"
	"golang.org/x/crypto/sha3"
)

// Canonical serializes params deterministically. Structs are flattened to a
// map first so the output is ordered by field name rather than declaration.
func Canonical(params interface{}) ([]byte, error) {
	value := params
	if structs.IsStruct(params) {
		value = structs.Map(params)
	}

	return json.Marshal(value)
}

// Key returns "<namespace>:<sha3-256 of the canonical params>".
func Key(namespace string, params interface{}) (string, error) {
	canonical, err := Canonical(params)
	if err != nil {
		return "", err
	}

	sum := sha3.Sum256(canonical)
	return namespace + ":" + hex.EncodeToString(sum[:]), nil
}
