package credstore

import (
	"context"

	gocache "github.com/patrickmn/go-cache"

	"github.com/leelynne/gbusiness-httpsig/session"
)

// Memory keeps the encoded blob in process. Nothing survives a restart.
type Memory struct {
	c *gocache.Cache
}

func NewMemory() *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, 0)}
}

func (m *Memory) Restore(_ context.Context) (session.Credential, bool, error) {
	v, ok := m.c.Get(Name)
	if !ok {
		return session.Credential{}, false, nil
	}
	s, _ := v.(string)
	cred, err := Decode(s)
	if err != nil {
		return session.Credential{}, false, err
	}
	return cred, true, nil
}

func (m *Memory) Persist(_ context.Context, cred session.Credential) error {
	v, err := Encode(cred)
	if err != nil {
		return err
	}
	m.c.Set(Name, v, gocache.NoExpiration)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.c.Delete(Name)
	return nil
}
