package ports

import "errors"

var ErrNotFound = errors.New("not found")

// ErrStorageUnavailable: le key-value store ne peut pas être lu/écrit
// (fichier verrouillé, disque plein, base fermée...).
var ErrStorageUnavailable = errors.New("storage unavailable")
