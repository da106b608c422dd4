package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpsig "github.com/leelynne/gbusiness-httpsig"
	"github.com/leelynne/gbusiness-httpsig/keyutil"
)

var testKeyPair = sync.OnceValue(func() keyutil.KeyPair {
	kp, err := keyutil.GenerateKeyPairBits(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return kp
})

func testCredential(keyID string) Credential {
	return Credential{KeyID: keyID, KeyPair: testKeyPair(), Environment: Sandbox}
}

type fakeStore struct {
	mu         sync.Mutex
	cred       *Credential
	persistErr error
	restoreErr error
}

func (f *fakeStore) Restore(context.Context) (Credential, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.restoreErr != nil {
		return Credential{}, false, f.restoreErr
	}
	if f.cred == nil {
		return Credential{}, false, nil
	}
	return *f.cred, true, nil
}

func (f *fakeStore) Persist(_ context.Context, c Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return f.persistErr
	}
	f.cred = &c
	return nil
}

func (f *fakeStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cred = nil
	return nil
}

func TestNewIsUnauthenticated(t *testing.T) {
	s := New(nil)
	assert.Equal(t, Unauthenticated, s.Current().State)

	_, err := s.Credential()
	require.Error(t, err)
	assert.True(t, httpsig.IsCode(err, httpsig.ErrUnauthenticated))
}

func TestSetAuthenticated(t *testing.T) {
	store := &fakeStore{}
	s := New(store)
	cred := testCredential("kid-1")

	require.NoError(t, s.SetAuthenticated(context.Background(), cred))
	cur := s.Current()
	assert.Equal(t, Authenticated, cur.State)
	assert.Equal(t, "kid-1", cur.Credential.KeyID)
	assert.Equal(t, Sandbox, cur.Credential.Environment)

	got, err := s.Credential()
	require.NoError(t, err)
	assert.Equal(t, cred, got)
	require.NotNil(t, store.cred)
	assert.Equal(t, cred, *store.cred)

	// Re-activation replaces the credential as a whole.
	require.NoError(t, s.SetAuthenticated(context.Background(), testCredential("kid-2")))
	assert.Equal(t, "kid-2", s.Current().Credential.KeyID)
}

func TestSetAuthenticatedPersistFailure(t *testing.T) {
	store := &fakeStore{}
	s := New(store)
	require.NoError(t, s.SetAuthenticated(context.Background(), testCredential("kid-1")))

	store.persistErr = errors.New("disk full")
	err := s.SetAuthenticated(context.Background(), testCredential("kid-2"))
	require.Error(t, err)
	assert.Equal(t, "kid-1", s.Current().Credential.KeyID, "state must be unchanged")
}

func TestSetAuthenticatedRejectsInvalid(t *testing.T) {
	testcases := []struct {
		Name string
		Cred Credential
	}{
		{Name: "no key id", Cred: Credential{KeyPair: testKeyPair(), Environment: Sandbox}},
		{Name: "bad environment", Cred: Credential{KeyID: "k", KeyPair: testKeyPair(), Environment: "staging"}},
		{Name: "no private key", Cred: Credential{KeyID: "k", KeyPair: keyutil.KeyPair{PublicKey: testKeyPair().PublicKey}, Environment: Sandbox}},
	}
	for _, tc := range testcases {
		t.Run(tc.Name, func(t *testing.T) {
			s := New(nil)
			err := s.SetAuthenticated(context.Background(), tc.Cred)
			require.Error(t, err)
			assert.True(t, httpsig.IsCode(err, httpsig.ErrInvalidRequest))
			assert.Equal(t, Unauthenticated, s.Current().State)
		})
	}
}

func TestRestore(t *testing.T) {
	cred := testCredential("kid-restored")

	s, err := Restore(context.Background(), &fakeStore{cred: &cred})
	require.NoError(t, err)
	assert.Equal(t, Authenticated, s.Current().State)
	assert.Equal(t, "kid-restored", s.Current().Credential.KeyID)

	empty, err := Restore(context.Background(), &fakeStore{})
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, empty.Current().State)

	_, err = Restore(context.Background(), &fakeStore{restoreErr: errors.New("unreachable")})
	assert.Error(t, err)

	bad := Credential{KeyID: "k", Environment: Sandbox}
	_, err = Restore(context.Background(), &fakeStore{cred: &bad})
	assert.Error(t, err)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	s := New(&fakeStore{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.SetAuthenticated(context.Background(), testCredential(fmt.Sprintf("kid-%d", i)))
		}(i)
		go func() {
			defer wg.Done()
			a := s.Current()
			if a.State == Authenticated {
				assert.NotEmpty(t, a.Credential.KeyID)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, Authenticated, s.Current().State)
}

func TestCredentialNeverPrintsPrivateKey(t *testing.T) {
	cred := testCredential("kid-1")
	for _, out := range []string{fmt.Sprintf("%v", cred), fmt.Sprintf("%+v", cred), fmt.Sprintf("%#v", cred)} {
		assert.NotContains(t, out, "PRIVATE KEY")
		assert.Contains(t, out, "kid-1")
	}
}

func TestEnvironment(t *testing.T) {
	env, err := ParseEnvironment(" Sandbox ")
	require.NoError(t, err)
	assert.Equal(t, Sandbox, env)

	u, err := Production.BaseURL()
	require.NoError(t, err)
	assert.Equal(t, "https://authservices.satispay.com", u.String())

	u, err = Sandbox.BaseURL()
	require.NoError(t, err)
	assert.Equal(t, "https://staging.authservices.satispay.com", u.String())

	_, err = ParseEnvironment("local")
	assert.True(t, httpsig.IsCode(err, httpsig.ErrInvalidRequest))
}

func TestCredentialSigner(t *testing.T) {
	signer, err := testCredential("kid-9").Signer()
	require.NoError(t, err)
	assert.Equal(t, "kid-9", signer.KeyID())
}
