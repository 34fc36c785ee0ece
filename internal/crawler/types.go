package crawler

import (
	"encoding/json"
	"fmt"
	"time"
)

// FilterLabel is one `{filter, title}` pair attached to a listing entry.
type FilterLabel struct {
	Filter string     `json:"filter"`
	Title  FlexString `json:"title"`
}

// UnmarshalJSON accepts a numeric filter key as well as a string one.
func (l *FilterLabel) UnmarshalJSON(data []byte) error {
	var raw struct {
		Filter FlexString `json:"filter"`
		Title  FlexString `json:"title"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode filter label: %w", err)
	}
	*l = FilterLabel{Filter: raw.Filter.String(), Title: raw.Title}
	return nil
}

// ActionLabel is a marketing/action badge attached to a listing entry.
type ActionLabel struct {
	Title FlexString `json:"title"`
}

// CategoryRef is the optional category node carried by listing entries.
type CategoryRef struct {
	Name   string       `json:"name"`
	Parent *CategoryRef `json:"parent,omitempty"`
}

// ListingEntry mirrors one element of the listing endpoint's `results` array.
type ListingEntry struct {
	UUID          string        `json:"uuid"`
	Name          string        `json:"name"`
	ProductURL    string        `json:"product_url"`
	VendorCode    FlexString    `json:"vendor_code"`
	Price         FlexNumber    `json:"price"`
	PrevPrice     FlexNumber    `json:"prev_price"`
	Available     *bool         `json:"available"`
	QuantityTotal FlexNumber    `json:"quantity_total"`
	ImageURL      string        `json:"image_url"`
	FilterLabels  []FilterLabel `json:"filter_labels"`
	ActionLabels  []ActionLabel `json:"action_labels"`
	Category      *CategoryRef  `json:"category"`
}

// ListingResponse is the envelope returned by the listing endpoint. Entries
// stay raw so one malformed entry does not spoil the page.
type ListingResponse struct {
	Results []json.RawMessage `json:"results"`
}

// DecodeListingEntry decodes one element of ListingResponse.Results.
func DecodeListingEntry(raw json.RawMessage) (ListingEntry, error) {
	var entry ListingEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return ListingEntry{}, fmt.Errorf("%w: decode listing entry: %w", ErrMalformedPayload, err)
	}
	return entry, nil
}

// ProductSummary is a listing entry that won its dedup claim. Immutable once built.
type ProductSummary struct {
	ID           string
	Slug         string
	Category     string
	Page         int
	DiscoveredAt time.Time
	Name         string
	URL          string
	VendorCode   string
	Price        *float64
	PrevPrice    *float64
	InStock      bool
	Quantity     int
	ImageURL     string
	FilterLabels []FilterLabel
	ActionLabels []ActionLabel
	CategoryTree []string
}

// NewProductSummary converts a listing entry into a summary discovered at the given time.
func NewProductSummary(entry ListingEntry, slug, category string, page int, discoveredAt time.Time) ProductSummary {
	inStock := true
	if entry.Available != nil {
		inStock = *entry.Available
	}
	quantity := 0
	if q, ok := entry.QuantityTotal.Float64(); ok {
		quantity = int(q)
	}
	return ProductSummary{
		ID:           entry.UUID,
		Slug:         slug,
		Category:     category,
		Page:         page,
		DiscoveredAt: discoveredAt,
		Name:         entry.Name,
		URL:          entry.ProductURL,
		VendorCode:   entry.VendorCode.String(),
		Price:        optionalFloat(entry.Price),
		PrevPrice:    optionalFloat(entry.PrevPrice),
		InStock:      inStock,
		Quantity:     quantity,
		ImageURL:     entry.ImageURL,
		FilterLabels: append([]FilterLabel(nil), entry.FilterLabels...),
		ActionLabels: append([]ActionLabel(nil), entry.ActionLabels...),
		CategoryTree: categoryTree(entry.Category),
	}
}

func optionalFloat(n FlexNumber) *float64 {
	f, ok := n.Float64()
	if !ok {
		return nil
	}
	return &f
}

func categoryTree(ref *CategoryRef) []string {
	if ref == nil {
		return nil
	}
	var tree []string
	if ref.Parent != nil && ref.Parent.Name != "" {
		tree = append(tree, ref.Parent.Name)
	}
	if ref.Name != "" {
		tree = append(tree, ref.Name)
	}
	return tree
}

// BlockType discriminates description blocks.
type BlockType string

// Description block kinds understood by the normalizer.
const (
	BlockSelect BlockType = "select"
	BlockRange  BlockType = "range"
)

// BlockValue is one enumerated value of a `select` block.
type BlockValue struct {
	Name FlexString `json:"name"`
}

// DescriptionBlock is either an enumerated (`select`) or numeric (`range`) attribute.
type DescriptionBlock struct {
	Title  string       `json:"title"`
	Type   BlockType    `json:"type"`
	Values []BlockValue `json:"values"`
	Min    FlexNumber   `json:"min"`
	Max    FlexNumber   `json:"max"`
	Unit   string       `json:"unit"`
}

// TextBlock is a titled free-text section of the detail payload.
type TextBlock struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ProductDetail mirrors the detail endpoint's `results` object.
type ProductDetail struct {
	VendorCode        FlexString         `json:"vendor_code"`
	CountryName       string             `json:"country_name"`
	DescriptionBlocks []DescriptionBlock `json:"description_blocks"`
	TextBlocks        []TextBlock        `json:"text_blocks"`
}

// DetailResponse is the envelope returned by the detail endpoint.
type DetailResponse struct {
	Results *ProductDetail `json:"results"`
}

// PriceData is the canonical price block.
type PriceData struct {
	Current  *float64 `json:"current"`
	Original *float64 `json:"original"`
	SaleTag  *string  `json:"sale_tag"`
}

// Stock is the canonical availability block.
type Stock struct {
	InStock bool `json:"in_stock"`
	Count   int  `json:"count"`
}

// Assets is the canonical media block. Only MainImage is populated by this pipeline.
type Assets struct {
	MainImage string   `json:"main_image"`
	SetImages []string `json:"set_images"`
	View360   []string `json:"view360"`
	Video     []string `json:"video"`
}

// CanonicalRecord is the merged listing+detail output handed to record sinks.
type CanonicalRecord struct {
	Timestamp     int64     `json:"timestamp"`
	RPC           string    `json:"RPC"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	MarketingTags []string  `json:"marketing_tags"`
	Brand         *string   `json:"brand"`
	Section       []string  `json:"section"`
	PriceData     PriceData `json:"price_data"`
	Stock         Stock     `json:"stock"`
	Assets        Assets    `json:"assets"`
	Metadata      *Metadata `json:"metadata"`
	Variants      int       `json:"variants"`
}

// Slug returns the dedup key for the record's canonical URL.
func (r CanonicalRecord) Slug() string {
	return SlugFromURL(r.URL)
}
