package app

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/domain"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/ports"
)

type memKV struct {
	data   map[string][]byte
	err    error
	reads  int
	writes int
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.reads++
	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.data[key]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return b, nil
}

func (m *memKV) Put(ctx context.Context, key string, value []byte) error {
	m.writes++
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	m.writes++
	if m.err != nil {
		return m.err
	}
	delete(m.data, key)
	return nil
}

func TestSessionService_SetPersistsAndAuthenticates(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	svc := NewSessionService(zerolog.Nop(), kv)

	if svc.IsAuthenticated(ctx) {
		t.Fatalf("expected no session on empty store")
	}

	got, err := svc.Set(ctx, domain.UserProfile{DisplayName: "  Ana ", RoleLabel: "Engineer "})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got.DisplayName != "Ana" || got.RoleLabel != "Engineer" {
		t.Fatalf("expected trimmed profile, got %+v", got)
	}
	if !svc.IsAuthenticated(ctx) {
		t.Fatalf("expected authenticated after Set")
	}
	if string(kv.data[domain.ProfileKey]) != `{"displayName":"Ana","roleLabel":"Engineer"}` {
		t.Fatalf("unexpected persisted value: %s", kv.data[domain.ProfileKey])
	}

	// Un nouveau service relit le slot persisté.
	again := NewSessionService(zerolog.Nop(), kv)
	p, ok := again.Get(ctx)
	if !ok || p.DisplayName != "Ana" {
		t.Fatalf("expected persisted session, got %+v ok=%v", p, ok)
	}
}

func TestSessionService_InvalidProfileKeepsPriorSession(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(zerolog.Nop(), newMemKV())
	if _, err := svc.Set(ctx, domain.UserProfile{DisplayName: "Ana", RoleLabel: "Engineer"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	_, err := svc.Set(ctx, domain.UserProfile{DisplayName: "Bob", RoleLabel: "  "})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Fields["roleLabel"] == "" {
		t.Fatalf("expected roleLabel message, got %v", verr.Fields)
	}

	p, ok := svc.Get(ctx)
	if !ok || p.DisplayName != "Ana" {
		t.Fatalf("prior session must be unchanged, got %+v", p)
	}
}

func TestSessionService_ClearRemovesSession(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	svc := NewSessionService(zerolog.Nop(), kv)
	_, _ = svc.Set(ctx, domain.UserProfile{DisplayName: "Ana", RoleLabel: "Engineer"})

	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if svc.IsAuthenticated(ctx) {
		t.Fatalf("expected no session after Clear")
	}
	if _, ok := kv.data[domain.ProfileKey]; ok {
		t.Fatalf("expected slot removed")
	}
}

func TestSessionService_MalformedContentIsNoSession(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":      `{{{`,
		"wrong types":   `{"displayName":1,"roleLabel":true}`,
		"missing field": `{"displayName":"Ana"}`,
		"blank fields":  `{"displayName":" ","roleLabel":""}`,
	} {
		kv := newMemKV()
		kv.data[domain.ProfileKey] = []byte(raw)
		svc := NewSessionService(zerolog.Nop(), kv)
		if _, ok := svc.Get(context.Background()); ok {
			t.Fatalf("%s: expected no session", name)
		}
	}
}

func TestSessionService_StorageUnavailableDegrades(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	kv.err = ports.ErrStorageUnavailable
	svc := NewSessionService(zerolog.Nop(), kv)

	if svc.IsAuthenticated(ctx) {
		t.Fatalf("expected no session when storage is unavailable")
	}
	if _, err := svc.Set(ctx, domain.UserProfile{DisplayName: "Ana", RoleLabel: "Engineer"}); err != nil {
		t.Fatalf("Set must not fail on storage errors: %v", err)
	}
	if !svc.IsAuthenticated(ctx) {
		t.Fatalf("expected in-memory session")
	}
}

func TestSessionService_ReadsStoreOnce(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	svc := NewSessionService(zerolog.Nop(), kv)
	for i := 0; i < 5; i++ {
		svc.Get(ctx)
	}
	if kv.reads != 1 {
		t.Fatalf("expected a single store read, got %d", kv.reads)
	}
}
