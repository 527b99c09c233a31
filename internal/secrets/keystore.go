package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
)

// keyRecord is the on-disk shape for one provider's stored credential,
// per spec.md §4.5: "{api_key_enc, secret_enc?, enc: bool}".
type keyRecord struct {
	APIKeyEnc string `json:"api_key_enc"`
	SecretEnc string `json:"secret_enc,omitempty"`
	Enc       bool   `json:"enc"`
}

type fileFormat struct {
	Keys map[string]keyRecord `json:"keys"`
}

// FileStore is a Provider backed by an encrypted on-disk JSON file.
// Writes take an exclusive advisory file lock so that readers never
// observe a torn version of the file, per spec.md §5.
type FileStore struct {
	path   string
	aead   *chacha20poly1305key
}

type chacha20poly1305key struct {
	key []byte
}

// NewFileStore opens (without requiring it to exist yet) an encrypted
// key store at path, deriving the AEAD key from processSecret via
// SHA-256. If processSecret is empty, keys are stored unencrypted
// (Enc=false) — this matches spec.md §4.5's "encrypted … when a process
// secret is present".
func NewFileStore(path string, processSecret string) *FileStore {
	fs := &FileStore{path: path}
	if processSecret != "" {
		sum := sha256.Sum256([]byte(processSecret))
		fs.aead = &chacha20poly1305key{key: sum[:]}
	}
	return fs
}

// GetAPIKey implements Provider, transparently decrypting if needed.
func (fs *FileStore) GetAPIKey(providerName string) (string, bool) {
	data, err := fs.load()
	if err != nil {
		return "", false
	}
	rec, ok := data.Keys[providerName]
	if !ok {
		return "", false
	}
	if !rec.Enc {
		return rec.APIKeyEnc, true
	}
	if fs.aead == nil {
		return "", false
	}
	plain, err := fs.decrypt(rec.APIKeyEnc)
	if err != nil {
		return "", false
	}
	return plain, true
}

// SetAPIKey writes or replaces a provider's key under an exclusive file
// lock, encrypting it when a process secret was configured.
func (fs *FileStore) SetAPIKey(providerName, apiKey string) error {
	unlock, err := lockFile(fs.path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	data, err := fs.load()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if data.Keys == nil {
		data.Keys = map[string]keyRecord{}
	}

	rec := keyRecord{Enc: fs.aead != nil}
	if fs.aead != nil {
		enc, err := fs.encrypt(apiKey)
		if err != nil {
			return err
		}
		rec.APIKeyEnc = enc
	} else {
		rec.APIKeyEnc = apiKey
	}
	data.Keys[providerName] = rec

	return fs.save(data)
}

func (fs *FileStore) load() (fileFormat, error) {
	var out fileFormat
	raw, err := os.ReadFile(fs.path)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (fs *FileStore) save(data fileFormat) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, fs.path)
}

func (fs *FileStore) encrypt(plain string) (string, error) {
	aead, err := chacha20poly1305.New(fs.aead.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return encodeHex(sealed), nil
}

func (fs *FileStore) decrypt(enc string) (string, error) {
	sealed, err := decodeHex(enc)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(fs.aead.key)
	if err != nil {
		return "", err
	}
	if len(sealed) < aead.NonceSize() {
		return "", errors.New("secrets: ciphertext too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("secrets: decrypt failed: %w", err)
	}
	return string(plain), nil
}
