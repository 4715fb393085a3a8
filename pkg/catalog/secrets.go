package catalog

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
)

// Cipher seals credential bundles at rest. With an empty key it is a
// pass-through JSON codec, so dev setups work without key management.
// Sealed payloads carry a 0x01 version byte ahead of nonce+ciphertext;
// plain JSON never starts with 0x01, which keeps decode unambiguous.
type Cipher struct {
	key []byte
}

func NewCipher(key string) *Cipher {
	if key == "" {
		return &Cipher{}
	}
	return &Cipher{key: []byte(key)}
}

func (c *Cipher) Seal(metadata map[string]string) ([]byte, error) {
	plain, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	if len(c.key) == 0 {
		return plain, nil
	}
	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, plain, nil)
	out := make([]byte, 1+len(nonce)+len(ct))
	out[0] = 0x01
	copy(out[1:1+len(nonce)], nonce)
	copy(out[1+len(nonce):], ct)
	return out, nil
}

func (c *Cipher) Open(blob []byte) (map[string]string, error) {
	if len(blob) == 0 {
		return map[string]string{}, nil
	}
	if blob[0] != 0x01 {
		var m map[string]string
		if err := json.Unmarshal(blob, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
	if len(c.key) == 0 {
		return nil, errors.New("sealed metadata but no encryption key configured")
	}
	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}
	if len(blob) < 1+gcm.NonceSize() {
		return nil, errors.New("sealed metadata truncated")
	}
	nonce := blob[1 : 1+gcm.NonceSize()]
	plain, err := gcm.Open(nil, nonce, blob[1+gcm.NonceSize():], nil)
	if err != nil {
		return nil, err
	}
	var m map[string]string
	if err := json.Unmarshal(plain, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *Cipher) gcm() (cipher.AEAD, error) {
	h := sha256.Sum256(c.key)
	block, err := aes.NewCipher(h[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
