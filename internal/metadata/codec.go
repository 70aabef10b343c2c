package metadata

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Separator joins the hex-encoded IV and ciphertext of an encoded descriptor.
const Separator = "."

// ErrDecode reports an encoded descriptor that cannot be decoded: missing
// separator, invalid hex, or a payload that does not deserialize to a
// descriptor. Callers treat it as forbidden/corrupt, never as not-found.
var ErrDecode = errors.New("undecodable metadata")

// A Codec encrypts and decrypts descriptors under the process-wide metadata
// secret. This secret is distinct from the per-object chunk keys: it only
// protects descriptors at rest in message bodies.
type Codec struct {
	secret []byte
}

// NewCodec returns a Codec. The secret must be a 32-byte AES-256 key.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) != 32 {
		return nil, errors.New("metadata secret must be 32 bytes")
	}

	return &Codec{secret: secret}, nil
}

// Encode serializes and encrypts the descriptor under a fresh IV and returns
// the opaque "ivhex.cipherhex" form.
func (c *Codec) Encode(d *Descriptor) (string, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return "", errors.Wrap(err, "could not serialize descriptor")
	}

	iv := make([]byte, aes.BlockSize)
	if _, err = rand.Read(iv); err != nil {
		return "", errors.Wrap(err, "could not generate descriptor iv")
	}

	encrypted := make([]byte, len(payload))
	c.stream(iv).XORKeyStream(encrypted, payload)

	return hex.EncodeToString(iv) + Separator + hex.EncodeToString(encrypted), nil
}

// Decode reverses Encode. Every malformed input yields ErrDecode.
func (c *Codec) Decode(encoded string) (*Descriptor, error) {
	parts := strings.SplitN(encoded, Separator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, errors.Wrap(ErrDecode, "missing separator")
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return nil, errors.Wrap(ErrDecode, "malformed iv")
	}

	encrypted, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, errors.Wrap(ErrDecode, "malformed ciphertext")
	}

	payload := make([]byte, len(encrypted))
	c.stream(iv).XORKeyStream(payload, encrypted)

	var d Descriptor
	if err = json.Unmarshal(payload, &d); err != nil {
		return nil, errors.Wrap(ErrDecode, "corrupted payload")
	}
	if d.Ident == "" {
		return nil, errors.Wrap(ErrDecode, "empty descriptor")
	}

	return &d, nil
}

func (c *Codec) stream(iv []byte) cipher.Stream {
	// The key length was validated by NewCodec.
	block, _ := aes.NewCipher(c.secret)
	return cipher.NewCTR(block, iv)
}

// IsDecode returns true when err reports an undecodable descriptor.
func IsDecode(err error) bool {
	return errors.Cause(err) == ErrDecode
}
