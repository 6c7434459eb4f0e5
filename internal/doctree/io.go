package doctree

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dgallion1/pdf2epub/internal/jsonio"
)

// Load reads an AST file.
func Load(path string) (*Document, error) {
	var d Document
	if err := jsonio.ReadJSON(path, &d); err != nil {
		return nil, err
	}
	d.Normalize()
	return &d, nil
}

// Save writes the document as indented JSON, replacing path atomically.
func Save(path string, d *Document) error {
	d.Normalize()
	return jsonio.WriteJSON(path, d)
}

// ContentHash returns the SHA-256 of the document's canonical JSON form.
func ContentHash(d *Document) ([32]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return [32]byte{}, fmt.Errorf("encode document: %w", err)
	}
	return sha256.Sum256(data), nil
}

// ContentHashHex is ContentHash as a lowercase hex string.
func ContentHashHex(d *Document) (string, error) {
	sum, err := ContentHash(d)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum[:]), nil
}
