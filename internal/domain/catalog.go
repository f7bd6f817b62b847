package domain

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Valeurs par défaut de la requête paginée (query GetAnimePage).
const (
	DefaultPage    = 1
	DefaultPerPage = 20
)

type Title struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

type CoverImage struct {
	Large  string `json:"large"`
	Medium string `json:"medium"`
}

type CatalogItem struct {
	ID           int        `json:"id"`
	Title        Title      `json:"title"`
	Description  string     `json:"description"`
	CoverImage   CoverImage `json:"coverImage"`
	BannerImage  string     `json:"bannerImage"`
	Genres       []string   `json:"genres"`
	Format       string     `json:"format"`
	Status       string     `json:"status"`
	Episodes     int        `json:"episodes"`
	Duration     int        `json:"duration"`
	SeasonYear   int        `json:"seasonYear"`
	AverageScore int        `json:"averageScore"`
	Popularity   int        `json:"popularity"`
	Studios      []string   `json:"studios"`
}

// DisplayTitle: english, puis romaji, puis native.
func (it CatalogItem) DisplayTitle() string {
	for _, t := range []string{it.Title.English, it.Title.Romaji, it.Title.Native} {
		if strings.TrimSpace(t) != "" {
			return t
		}
	}
	return ""
}

// ScoreLabel convertit averageScore (0-100) en note sur 10.
func (it CatalogItem) ScoreLabel() string {
	if it.AverageScore <= 0 {
		return "N/A"
	}
	return strconv.FormatFloat(float64(it.AverageScore)/10, 'f', 1, 64)
}

var descriptionPolicy = bluemonday.StrictPolicy()

var lineBreaks = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n")

// PlainDescription retire le HTML renvoyé par AniList.
func (it CatalogItem) PlainDescription() string {
	if strings.TrimSpace(it.Description) == "" {
		return "No description available."
	}
	clean := descriptionPolicy.Sanitize(lineBreaks.Replace(it.Description))
	return strings.TrimSpace(html.UnescapeString(clean))
}

type PageInfo struct {
	Total       int  `json:"total"`
	CurrentPage int  `json:"currentPage"`
	LastPage    int  `json:"lastPage"`
	HasNextPage bool `json:"hasNextPage"`
	PerPage     int  `json:"perPage"`
}

// Range renvoie les bornes (1-based, inclusives) des éléments affichés,
// pour le texte "Showing X to Y of Z results".
func (p PageInfo) Range() (start, end int) {
	if p.Total <= 0 || p.PerPage <= 0 || p.CurrentPage <= 0 {
		return 0, 0
	}
	start = (p.CurrentPage-1)*p.PerPage + 1
	end = p.CurrentPage * p.PerPage
	if end > p.Total {
		end = p.Total
	}
	if start > end {
		return 0, 0
	}
	return start, end
}

// Summary formate la ligne de résumé sous la grille.
func (p PageInfo) Summary() string {
	start, end := p.Range()
	return fmt.Sprintf("Showing %d to %d of %d results", start, end, max(p.Total, 0))
}

type CatalogPage struct {
	Items    []CatalogItem `json:"items"`
	PageInfo PageInfo      `json:"pageInfo"`
	// Stale: page servie depuis le cache après un échec de rafraîchissement.
	Stale bool `json:"stale,omitempty"`
}

// Item cherche un élément de la page par identifiant.
func (p CatalogPage) Item(id int) (CatalogItem, bool) {
	for _, it := range p.Items {
		if it.ID == id {
			return it, true
		}
	}
	return CatalogItem{}, false
}
