package credstore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/leelynne/gbusiness-httpsig/session"
)

// KDFParams are the argon2id parameters used to derive the file key from a passphrase.
type KDFParams struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
}

var DefaultKDF = KDFParams{Memory: 64 * 1024, Time: 3, Parallelism: 1}

const (
	saltSize  = 16
	maxMemory = 1 << 20 // KiB, 1 GiB
)

// validate bounds the parameters before they reach argon2, which panics on zero rounds or threads.
func (p KDFParams) validate() error {
	if p.Time < 1 || p.Parallelism < 1 || p.Memory < 1 || p.Memory > maxMemory {
		return fmt.Errorf("invalid argon2id parameters (memory=%d time=%d parallelism=%d)", p.Memory, p.Time, p.Parallelism)
	}
	return nil
}

// File stores the credential in a single file. With a passphrase the blob is sealed with
// XChaCha20-Poly1305 under an argon2id derived key, otherwise it is written as is.
type File struct {
	path       string
	passphrase []byte
	kdf        KDFParams
}

type envelope struct {
	Version int       `json:"v"`
	KDF     string    `json:"kdf"`
	Params  KDFParams `json:"params"`
	Salt    []byte    `json:"salt"`
	Nonce   []byte    `json:"nonce"`
	Data    []byte    `json:"data"`
}

// NewFile returns a file backed store. An empty passphrase disables encryption.
func NewFile(path, passphrase string) *File {
	return &File{path: path, passphrase: []byte(passphrase), kdf: DefaultKDF}
}

// WithKDF overrides the key derivation parameters.
func (f *File) WithKDF(p KDFParams) *File {
	f.kdf = p
	return f
}

func (f *File) Restore(_ context.Context) (session.Credential, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return session.Credential{}, false, nil
	}
	if err != nil {
		return session.Credential{}, false, fmt.Errorf("read credential file: %w", err)
	}

	text := string(data)
	if len(f.passphrase) > 0 {
		plain, err := f.open(data)
		if err != nil {
			return session.Credential{}, false, err
		}
		text = string(plain)
	}
	cred, err := Decode(text)
	if err != nil {
		return session.Credential{}, false, err
	}
	return cred, true, nil
}

func (f *File) Persist(_ context.Context, cred session.Credential) error {
	encoded, err := Encode(cred)
	if err != nil {
		return err
	}
	data := []byte(encoded)
	if len(f.passphrase) > 0 {
		if data, err = f.seal(data); err != nil {
			return err
		}
	}
	return writeFileAtomic(f.path, data)
}

// writeFileAtomic writes data to a unique temp file next to path, syncs it and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credential-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (f *File) Clear(_ context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}

func (f *File) deriveKey(salt []byte, p KDFParams) []byte {
	return argon2.IDKey(f.passphrase, salt, p.Time, p.Memory, p.Parallelism, chacha20poly1305.KeySize)
}

func (f *File) seal(plain []byte) ([]byte, error) {
	if err := f.kdf.validate(); err != nil {
		return nil, fmt.Errorf("credential kdf: %w", err)
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("credential salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(f.deriveKey(salt, f.kdf))
	if err != nil {
		return nil, fmt.Errorf("xchacha new: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("xchacha nonce: %w", err)
	}
	return json.Marshal(envelope{
		Version: 1,
		KDF:     "argon2id",
		Params:  f.kdf,
		Salt:    salt,
		Nonce:   nonce,
		Data:    aead.Seal(nil, nonce, plain, []byte(Name)),
	})
}

func (f *File) open(data []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("credential file is not an encrypted envelope")
	}
	if env.Version != 1 || env.KDF != "argon2id" {
		return nil, fmt.Errorf("unsupported credential envelope v%d/%s", env.Version, env.KDF)
	}
	if err := env.Params.validate(); err != nil {
		return nil, fmt.Errorf("credential envelope: %w", err)
	}
	if len(env.Salt) != saltSize {
		return nil, fmt.Errorf("credential envelope has a bad salt")
	}
	aead, err := chacha20poly1305.NewX(f.deriveKey(env.Salt, env.Params))
	if err != nil {
		return nil, fmt.Errorf("xchacha new: %w", err)
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("credential envelope has a bad nonce")
	}
	plain, err := aead.Open(nil, env.Nonce, env.Data, []byte(Name))
	if err != nil {
		return nil, fmt.Errorf("decrypt credential: wrong passphrase or corrupted file")
	}
	return plain, nil
}
