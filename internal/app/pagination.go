package app

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	// PageParam est l'unique état de navigation persistant (dans l'URL).
	PageParam = "page"

	DefaultMaxVisiblePages = 5
)

// ParsePage lit un numéro de page; absent, non numérique ou <= 0 donne 1.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// PageFromQuery lit le paramètre page d'une query string.
func PageFromQuery(q url.Values) int {
	return ParsePage(q.Get(PageParam))
}

// PageURL écrit page dans l'URL en conservant les autres paramètres.
func PageURL(base url.URL, page int) string {
	if page < 1 {
		page = 1
	}
	q := base.Query()
	q.Set(PageParam, strconv.Itoa(page))
	base.RawQuery = q.Encode()
	return base.String()
}

// PageLink est un élément de la barre de pagination: un numéro cliquable
// ou un marqueur d'ellipse inerte.
type PageLink struct {
	Page     int  `json:"page,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
	Current  bool `json:"current,omitempty"`
}

// PageWindow calcule la fenêtre de numéros visibles autour de current.
//
// Si lastPage <= maxVisible toutes les pages sont listées. Sinon une fenêtre
// de maxVisible pages démarre à max(1, current - maxVisible/2), la première et
// la dernière page sont toujours présentes, et un seul marqueur d'ellipse
// remplace chaque trou de plus d'une page.
func PageWindow(current, lastPage, maxVisible int) []PageLink {
	if lastPage < 1 {
		return nil
	}
	if maxVisible < 1 {
		maxVisible = DefaultMaxVisiblePages
	}

	link := func(p int) PageLink { return PageLink{Page: p, Current: p == current} }
	out := make([]PageLink, 0, maxVisible+4)

	if lastPage <= maxVisible {
		for p := 1; p <= lastPage; p++ {
			out = append(out, link(p))
		}
		return out
	}

	start := max(1, current-maxVisible/2)
	end := min(lastPage, start+maxVisible-1)

	if start > 1 {
		out = append(out, link(1))
		if start > 2 {
			out = append(out, PageLink{Ellipsis: true})
		}
	}
	for p := start; p <= end; p++ {
		out = append(out, link(p))
	}
	if end < lastPage {
		if end < lastPage-1 {
			out = append(out, PageLink{Ellipsis: true})
		}
		out = append(out, link(lastPage))
	}
	return out
}
