// keyman provides key management functionality
package keyman

import (
	"crypto/rsa"
	"fmt"
	"sync"

	httpsig "github.com/leelynne/gbusiness-httpsig"
	"github.com/leelynne/gbusiness-httpsig/keyutil"
)

// KeyFetchInMemory implements KeyFetcher for public keys stored in memory.
type KeyFetchInMemory struct {
	mu      sync.RWMutex
	pubkeys map[string]httpsig.KeySpec
}

func NewKeyFetchInMemory(pubkeys map[string]httpsig.KeySpec) *KeyFetchInMemory {
	if pubkeys == nil {
		pubkeys = map[string]httpsig.KeySpec{}
	}
	return &KeyFetchInMemory{pubkeys: pubkeys}
}

func (kf *KeyFetchInMemory) FetchByKeyID(keyID string) (httpsig.KeySpec, error) {
	kf.mu.RLock()
	defer kf.mu.RUnlock()
	ks, found := kf.pubkeys[keyID]
	if !found {
		return httpsig.KeySpec{}, fmt.Errorf("Key for keyid '%s' not found", keyID)
	}
	return ks, nil
}

// Register adds or replaces an RSA public key for keyID.
func (kf *KeyFetchInMemory) Register(keyID string, pub *rsa.PublicKey) {
	kf.mu.Lock()
	defer kf.mu.Unlock()
	kf.pubkeys[keyID] = httpsig.KeySpec{
		KeyID:  keyID,
		Algo:   httpsig.Algo_RSA_SHA256,
		PubKey: pub,
	}
}

// RegisterPEM parses a PEM public key, as uploaded during key activation, and registers it for keyID.
func (kf *KeyFetchInMemory) RegisterPEM(keyID string, pemKey string) error {
	pub, err := keyutil.KeyPair{PublicKey: pemKey}.RSAPublicKey()
	if err != nil {
		return err
	}
	kf.Register(keyID, pub)
	return nil
}
