package app

import (
	"errors"
	"sort"
	"strings"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/ports"
)

var (
	ErrNotFound           = ports.ErrNotFound
	ErrStorageUnavailable = ports.ErrStorageUnavailable
)

// ErrPageOutOfRange: saut de page hors de [1, lastPage], jamais envoyé au service distant.
var ErrPageOutOfRange = errors.New("page out of range")

// ValidationError porte un message par champ du profil refusé.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "invalid profile"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid profile: " + strings.Join(parts, "; ")
}

// Codes stables de FetchError.
const (
	FetchCodeNetwork = "network_error"
	FetchCodeHTTP    = "http_status"
	FetchCodeGraphQL = "graphql_error"
	FetchCodeDecode  = "decode_error"
)

// FetchError est renvoyée quand la requête paginée échoue.
// Code est stable (voir FetchCode*), Message est lisible par l'utilisateur.
type FetchError struct {
	Code    string
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// asFetchError garantit qu'une erreur de fetch est toujours une *FetchError.
func asFetchError(err error) *FetchError {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Code: FetchCodeNetwork, Message: "catalog request failed", Err: err}
}
