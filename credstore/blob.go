// Package credstore implements session.Store backends.
//
// Every backend stores the same opaque blob: the credential serialized as JSON
// {publicKey, privateKey, keyID, environment} and base64 encoded, kept under the
// fixed Service / Account name.
package credstore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/leelynne/gbusiness-httpsig/keyutil"
	"github.com/leelynne/gbusiness-httpsig/session"
)

const (
	Service = "gbusiness-demo"
	Account = "session"
)

// Name is the storage key shared by all backends.
const Name = Service + ":" + Account

type blob struct {
	PublicKey   string `json:"publicKey"`
	PrivateKey  string `json:"privateKey"`
	KeyID       string `json:"keyID"`
	Environment string `json:"environment"`
}

// Encode serializes cred into the stored blob.
func Encode(cred session.Credential) (string, error) {
	data, err := json.Marshal(blob{
		PublicKey:   cred.KeyPair.PublicKey,
		PrivateKey:  cred.KeyPair.PrivateKey,
		KeyID:       cred.KeyID,
		Environment: string(cred.Environment),
	})
	if err != nil {
		return "", fmt.Errorf("encode credential: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode parses a stored blob. Error messages never include the blob itself.
func Decode(s string) (session.Credential, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return session.Credential{}, fmt.Errorf("decode credential: invalid base64")
	}
	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return session.Credential{}, fmt.Errorf("decode credential: invalid json")
	}
	env, err := session.ParseEnvironment(b.Environment)
	if err != nil {
		return session.Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	return session.Credential{
		KeyID: b.KeyID,
		KeyPair: keyutil.KeyPair{
			PublicKey:  b.PublicKey,
			PrivateKey: b.PrivateKey,
		},
		Environment: env,
	}, nil
}
