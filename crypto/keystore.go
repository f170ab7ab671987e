package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// keystoreKDFIterations is the number of SHA-256 rounds used to stretch the
// passphrase into an AES-256 key. This is a deliberately conservative,
// dependency-free KDF; a node operator wanting interoperability with a
// hardware wallet would swap this file for one, not the reducers above it.
const keystoreKDFIterations = 200_000

type keystoreFile struct {
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func stretchPassphrase(passphrase string, salt []byte) []byte {
	key := append([]byte(nil), salt...)
	key = append(key, []byte(passphrase)...)
	sum := sha256.Sum256(key)
	for i := 0; i < keystoreKDFIterations; i++ {
		sum = sha256.Sum256(sum[:])
	}
	return sum[:]
}

// SaveToKeystore encrypts the signing key's seed with a passphrase-derived
// AES-256-GCM key and writes it to path. The parent directory is created
// with 0700 permissions if missing.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	if key == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	derived := stretchPassphrase(passphrase, salt)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	ciphertext := gcm.Seal(nil, nonce, key.Seed(), nil)

	doc := keystoreFile{
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(ciphertext),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	return nil
}

// LoadFromKeystore decrypts a keystore file written by SaveToKeystore.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc keystoreFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("crypto: decode keystore: %w", err)
	}
	salt, err := hex.DecodeString(doc.Salt)
	if err != nil {
		return nil, err
	}
	nonce, err := hex.DecodeString(doc.Nonce)
	if err != nil {
		return nil, err
	}
	ciphertext, err := hex.DecodeString(doc.Ciphertext)
	if err != nil {
		return nil, err
	}
	derived := stretchPassphrase(passphrase, salt)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	seed, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt keystore: wrong passphrase or corrupt file")
	}
	return PrivateKeyFromSeed(seed)
}
