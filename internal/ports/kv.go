package ports

import "context"

// KeyValueStore persiste des valeurs opaques sous une clé nommée.
// Get renvoie ErrNotFound si la clé est absente.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
