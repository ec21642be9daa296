package types

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
)

// ContentID is the SHA-256 of an annotation document's bytes. It keys the
// parse cache and the stores, so two paths holding the same document are
// parsed and stored once.
type ContentID [sha256.Size]byte

// ComputeContentID hashes a raw annotation document.
func ComputeContentID(content []byte) ContentID {
	return sha256.Sum256(content)
}

func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

// ParseContentID decodes the hex form produced by String.
func ParseContentID(s string) (ContentID, error) {
	var id ContentID
	if len(s) != hex.EncodedLen(sha256.Size) {
		return id, fmt.Errorf("content ID %q: want %d hex characters, got %d", s, hex.EncodedLen(sha256.Size), len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("content ID %q: %w", s, err)
	}
	return id, nil
}

// MarshalText lets ContentID appear as a JSON string or map key.
func (id ContentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ContentID) UnmarshalText(text []byte) error {
	parsed, err := ParseContentID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value stores the ID as its hex text.
func (id ContentID) Value() (driver.Value, error) {
	return id.String(), nil
}

func (id *ContentID) Scan(value any) error {
	switch v := value.(type) {
	case string:
		return id.UnmarshalText([]byte(v))
	case []byte:
		return id.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into ContentID", value)
	}
}
