package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"golang.org/x/crypto/sha3"
)

// Algorithm names a 256-bit cryptographic digest.
type Algorithm string

const (
	SHA256   Algorithm = "sha256"
	SHA3_256 Algorithm = "sha3-256"
)

// ErrUnsupportedAlgorithm is returned for digest names other than SHA256 and SHA3_256.
var ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

// ErrMalformed is returned when a Fingerprint is not 64 lowercase hex characters.
var ErrMalformed = errors.New("malformed fingerprint")

// ParseAlgorithm validates a configured algorithm name. Empty means SHA256.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "", SHA256:
		return SHA256, nil
	case SHA3_256:
		return SHA3_256, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
}

func (a Algorithm) sum(data []byte) ([]byte, error) {
	switch a {
	case SHA256:
		s := sha256.Sum256(data)
		return s[:], nil
	case SHA3_256:
		s := sha3.Sum256(data)
		return s[:], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(a))
	}
}

// Fingerprint is the lowercase hex digest of a canonical landmark set.
// It is opaque: nothing in this package decodes it back into landmarks.
type Fingerprint string

// Len is the length of every Fingerprint in hex characters.
const Len = 2 * sha256.Size

func (f Fingerprint) String() string { return string(f) }

// Short returns the first 12 hex characters, for logs.
func (f Fingerprint) Short() string {
	if len(f) < 12 {
		return string(f)
	}
	return string(f[:12])
}

// Valid reports whether f has the shape of a digest produced by this package.
func (f Fingerprint) Valid() bool {
	if len(f) != Len {
		return false
	}
	for _, c := range []byte(f) {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// CID renders the digest as a CIDv1 with the raw codec and a sha2-256
// multihash, for callers that key content by CID. alg must be the algorithm
// the fingerprint was produced with; only SHA256 fingerprints have a CID.
func (f Fingerprint) CID(alg Algorithm) (string, error) {
	if alg != SHA256 {
		return "", fmt.Errorf("%w: no CID for %q", ErrUnsupportedAlgorithm, string(alg))
	}
	if !f.Valid() {
		return "", ErrMalformed
	}
	digest, err := hex.DecodeString(string(f))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	mh, err := multihash.Encode(digest, multihash.SHA2_256)
	if err != nil {
		return "", fmt.Errorf("encode multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

// Serialize returns the exact bytes that are digested: a compact JSON array of
// {"x","y","z"} objects in landmark order, numbers in shortest round-trip form.
// Non-finite coordinates cannot be serialized and return an error.
func Serialize(c Canonical) ([]byte, error) {
	data, err := json.Marshal(c[:])
	if err != nil {
		return nil, fmt.Errorf("serialize canonical set: %w", err)
	}
	return data, nil
}

// Sum digests the canonical set with alg.
func Sum(alg Algorithm, c Canonical) (Fingerprint, error) {
	data, err := Serialize(c)
	if err != nil {
		return "", err
	}
	digest, err := alg.sum(data)
	if err != nil {
		return "", err
	}
	return Fingerprint(hex.EncodeToString(digest)), nil
}

// Generate digests the canonical set with SHA-256.
func Generate(c Canonical) (Fingerprint, error) {
	return Sum(SHA256, c)
}
