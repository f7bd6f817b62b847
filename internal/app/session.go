package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/domain"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/ports"
)

// SessionService détient le profil courant. Set/Clear sont les seuls writers;
// chaque mutation est écrite dans le store, la lecture est mise en cache après
// le premier chargement.
//
// Un store indisponible n'est jamais fatal: la lecture se dégrade en "pas de
// session" et une écriture ratée garde le profil en mémoire pour ce processus.
type SessionService struct {
	logger zerolog.Logger
	store  ports.KeyValueStore

	mu      sync.Mutex
	loaded  bool
	current *domain.UserProfile
}

func NewSessionService(logger zerolog.Logger, store ports.KeyValueStore) *SessionService {
	return &SessionService{logger: logger, store: store}
}

// storedProfile sert à vérifier la forme du JSON persisté (deux chaînes présentes).
type storedProfile struct {
	DisplayName *string `json:"displayName"`
	RoleLabel   *string `json:"roleLabel"`
}

func (s *SessionService) Get(ctx context.Context) (domain.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)
	if s.current == nil {
		return domain.UserProfile{}, false
	}
	return *s.current, true
}

func (s *SessionService) IsAuthenticated(ctx context.Context) bool {
	p, ok := s.Get(ctx)
	return ok && p.Complete()
}

// Set valide puis persiste le profil. En cas de *ValidationError la session
// précédente reste inchangée.
func (s *SessionService) Set(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if fields := profile.FieldErrors(); len(fields) > 0 {
		return domain.UserProfile{}, &ValidationError{Fields: fields}
	}
	profile = profile.Trimmed()

	b, err := json.Marshal(profile)
	if err != nil {
		return domain.UserProfile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.current = &profile
	if s.store == nil {
		return profile, nil
	}
	if err := s.store.Put(ctx, domain.ProfileKey, b); err != nil {
		s.logger.Warn().Err(err).Msg("profile not persisted, keeping in-memory session")
	}
	return profile, nil
}

func (s *SessionService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.current = nil
	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(ctx, domain.ProfileKey); err != nil {
		s.logger.Warn().Err(err).Msg("profile not removed from storage")
	}
	return nil
}

func (s *SessionService) loadLocked(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true
	if s.store == nil {
		return
	}

	b, err := s.store.Get(ctx, domain.ProfileKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Msg("session storage unavailable, starting without profile")
		}
		return
	}

	var raw storedProfile
	if err := json.Unmarshal(b, &raw); err != nil || raw.DisplayName == nil || raw.RoleLabel == nil {
		// Contenu corrompu : traité comme absent.
		s.logger.Warn().Msg("stored profile is malformed, ignoring")
		return
	}
	p := domain.UserProfile{DisplayName: *raw.DisplayName, RoleLabel: *raw.RoleLabel}
	if !p.Complete() {
		return
	}
	s.current = &p
}
