package ports

import (
	"context"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/domain"
)

// CatalogSource est le service distant qui renvoie une page du catalogue.
type CatalogSource interface {
	Page(ctx context.Context, page, perPage int) (domain.CatalogPage, error)
}
