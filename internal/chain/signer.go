package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Signer produces signed transaction blobs for a prepared payload. Key
// storage is delegated to an external custody service; adapters never hold
// private keys.
type Signer interface {
	Sign(ctx context.Context, address string, payload []byte) ([]byte, error)
}

// StaticSigner is a stand-in custody client that derives a deterministic
// pseudo-signature from the payload. Used in simulation and tests.
type StaticSigner struct{}

func NewStaticSigner() *StaticSigner {
	return &StaticSigner{}
}

func (s *StaticSigner) Sign(ctx context.Context, address string, payload []byte) ([]byte, error) {
	sum := sha256.Sum256(append([]byte(address+"|"), payload...))
	sig := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(sig, sum[:])
	return sig, nil
}
