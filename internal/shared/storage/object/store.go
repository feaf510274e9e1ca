package object

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ObjectStore saves and retrieves blobs by storage key.
type ObjectStore interface {
	Put(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

var errInvalidSegment = errors.New("invalid key segment")

// RawResultKey is the archive location of a provider payload for one analysis.
// User ids are hashed so keys never carry identity.
func RawResultKey(userID, analysisID string) (string, error) {
	name, err := keySegment(analysisID)
	if err != nil {
		return "", fmt.Errorf("raw result key: %w", err)
	}
	return path.Join("raw", ownerDir(userID), name+".json"), nil
}

// ownerDir maps a user id to a stable hex directory name.
func ownerDir(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:16])
}

// keySegment flattens separators and rejects traversal.
func keySegment(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.Contains(s, "..") {
		return "", errInvalidSegment
	}
	return strings.NewReplacer("/", "_", "\\", "_").Replace(s), nil
}
