package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/domain"
)

const DefaultAniListEndpoint = "https://graphql.anilist.co"

// AniListService parle au endpoint GraphQL public d'AniList (aucun token requis).
type AniListService struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

func NewAniListService(timeout time.Duration) *AniListService {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AniListService{
		endpoint:  DefaultAniListEndpoint,
		userAgent: "catalog-server",
		client:    &http.Client{Timeout: timeout},
	}
}

func (s *AniListService) WithEndpoint(endpoint string) *AniListService {
	if strings.TrimSpace(endpoint) != "" {
		s.endpoint = strings.TrimSpace(endpoint)
	}
	return s
}

func (s *AniListService) Endpoint() string { return s.endpoint }

type aniListGraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type aniListGraphQLError struct {
	Message string `json:"message"`
}

type aniListGraphQLResponse[T any] struct {
	Data   T                     `json:"data"`
	Errors []aniListGraphQLError `json:"errors,omitempty"`
}

const animePageQuery = `query GetAnimePage($page: Int, $perPage: Int) {
	Page(page: $page, perPage: $perPage) {
		pageInfo { total currentPage lastPage hasNextPage perPage }
		media(type: ANIME, sort: POPULARITY_DESC) {
			id
			title { romaji english native }
			description
			coverImage { large medium }
			bannerImage
			genres
			format
			status
			episodes
			duration
			seasonYear
			averageScore
			popularity
			studios { nodes { name } }
		}
	}
}`

// Les champs numériques peuvent être null côté AniList: on décode en pointeurs.
type aniListMedia struct {
	ID           int               `json:"id"`
	Title        domain.Title      `json:"title"`
	Description  *string           `json:"description"`
	CoverImage   domain.CoverImage `json:"coverImage"`
	BannerImage  *string           `json:"bannerImage"`
	Genres       []string          `json:"genres"`
	Format       *string           `json:"format"`
	Status       *string           `json:"status"`
	Episodes     *int              `json:"episodes"`
	Duration     *int              `json:"duration"`
	SeasonYear   *int              `json:"seasonYear"`
	AverageScore *int              `json:"averageScore"`
	Popularity   *int              `json:"popularity"`
	Studios      struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"studios"`
}

type animePageData struct {
	Page *struct {
		PageInfo domain.PageInfo `json:"pageInfo"`
		Media    []aniListMedia  `json:"media"`
	} `json:"Page"`
}

// Page exécute GetAnimePage. Toutes les erreurs sont des *FetchError.
func (s *AniListService) Page(ctx context.Context, page, perPage int) (domain.CatalogPage, error) {
	if page < 1 {
		page = domain.DefaultPage
	}
	if perPage <= 0 {
		perPage = domain.DefaultPerPage
	}

	req := aniListGraphQLRequest{
		Query:     animePageQuery,
		Variables: map[string]any{"page": page, "perPage": perPage},
	}
	var out aniListGraphQLResponse[animePageData]
	if err := s.do(ctx, req, &out); err != nil {
		return domain.CatalogPage{}, err
	}
	if len(out.Errors) > 0 {
		return domain.CatalogPage{}, &FetchError{Code: FetchCodeGraphQL, Message: out.Errors[0].Message}
	}
	if out.Data.Page == nil {
		return domain.CatalogPage{}, &FetchError{Code: FetchCodeDecode, Message: "anilist response has no Page"}
	}

	items := make([]domain.CatalogItem, 0, len(out.Data.Page.Media))
	for _, m := range out.Data.Page.Media {
		items = append(items, m.toItem())
	}
	return domain.CatalogPage{Items: items, PageInfo: out.Data.Page.PageInfo}, nil
}

func (m aniListMedia) toItem() domain.CatalogItem {
	it := domain.CatalogItem{
		ID:           m.ID,
		Title:        m.Title,
		Description:  deref(m.Description),
		CoverImage:   m.CoverImage,
		BannerImage:  deref(m.BannerImage),
		Genres:       m.Genres,
		Format:       deref(m.Format),
		Status:       deref(m.Status),
		Episodes:     deref(m.Episodes),
		Duration:     deref(m.Duration),
		SeasonYear:   deref(m.SeasonYear),
		AverageScore: deref(m.AverageScore),
		Popularity:   deref(m.Popularity),
	}
	for _, n := range m.Studios.Nodes {
		if n.Name != "" {
			it.Studios = append(it.Studios, n.Name)
		}
	}
	return it
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (s *AniListService) do(ctx context.Context, req aniListGraphQLRequest, out any) error {
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return &FetchError{Code: FetchCodeNetwork, Message: "anilist unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &FetchError{Code: FetchCodeHTTP, Message: "anilist http error: " + resp.Status, Err: graphQLErrorFromBody(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Code: FetchCodeDecode, Message: "invalid anilist response", Err: err}
	}
	return nil
}

// AniList renvoie en général un corps GraphQL même en 4xx/5xx (ex: 429).
func graphQLErrorFromBody(r io.Reader) error {
	var body aniListGraphQLResponse[json.RawMessage]
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&body); err != nil || len(body.Errors) == 0 {
		return nil
	}
	msg := strings.TrimSpace(body.Errors[0].Message)
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}
