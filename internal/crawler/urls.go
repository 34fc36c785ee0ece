package crawler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	listingPath = "/web-api/v1/product"
	detailPath  = "/web-api/v1/product/"
)

// Endpoints builds listing and detail URLs for one crawl run.
type Endpoints struct {
	BaseURL  string
	CityUUID string
	PerPage  int
}

// ListingURL returns the URL of one listing page for a root category.
func (e Endpoints) ListingURL(category string, page int) string {
	q := url.Values{}
	q.Set("city_uuid", e.CityUUID)
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(e.PerPage))
	q.Set("root_category_slug", category)
	return fmt.Sprintf("%s%s?%s", strings.TrimRight(e.BaseURL, "/"), listingPath, q.Encode())
}

// DetailURL returns the URL of a product's detail resource.
func (e Endpoints) DetailURL(slug string) string {
	q := url.Values{}
	q.Set("city_uuid", e.CityUUID)
	return fmt.Sprintf("%s%s%s?%s", strings.TrimRight(e.BaseURL, "/"), detailPath, url.PathEscape(slug), q.Encode())
}

// SlugFromURL returns the last non-empty path segment of a product URL.
func SlugFromURL(productURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(productURL), "/")
	if trimmed == "" {
		return ""
	}
	if u, err := url.Parse(trimmed); err == nil && u.Path != "" {
		trimmed = strings.TrimRight(u.Path, "/")
	}
	idx := strings.LastIndex(trimmed, "/")
	return trimmed[idx+1:]
}
