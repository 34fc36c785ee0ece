// Package normalize merges a listing summary and its detail payload into the
// canonical record schema.
package normalize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// Options selects which upstream filter tags and block titles drive each
// output field.
type Options struct {
	VolumeFilters        []string
	CategoryFilters      []string
	ColorFilters         []string
	DescriptionTitle     string
	DescriptionKey       string
	VendorCodeKey        string
	CountryKey           string
	StripDescriptionHTML bool
}

// DefaultOptions returns the tag and key names used by the catalog API.
func DefaultOptions() Options {
	return Options{
		VolumeFilters:    []string{"obem"},
		CategoryFilters:  []string{"categories"},
		ColorFilters:     []string{"cvet"},
		DescriptionTitle: "Description",
		DescriptionKey:   "__description",
		VendorCodeKey:    "vendor code",
		CountryKey:       "country",
	}
}

// Normalizer is a pure (summary, detail) -> record transform.
type Normalizer struct {
	opts     Options
	volume   map[string]struct{}
	category map[string]struct{}
	color    map[string]struct{}
}

// New builds a Normalizer. Empty option fields fall back to DefaultOptions.
func New(opts Options) *Normalizer {
	def := DefaultOptions()
	if len(opts.VolumeFilters) == 0 {
		opts.VolumeFilters = def.VolumeFilters
	}
	if len(opts.CategoryFilters) == 0 {
		opts.CategoryFilters = def.CategoryFilters
	}
	if len(opts.ColorFilters) == 0 {
		opts.ColorFilters = def.ColorFilters
	}
	if opts.DescriptionTitle == "" {
		opts.DescriptionTitle = def.DescriptionTitle
	}
	if opts.DescriptionKey == "" {
		opts.DescriptionKey = def.DescriptionKey
	}
	if opts.VendorCodeKey == "" {
		opts.VendorCodeKey = def.VendorCodeKey
	}
	if opts.CountryKey == "" {
		opts.CountryKey = def.CountryKey
	}
	return &Normalizer{
		opts:     opts,
		volume:   toSet(opts.VolumeFilters),
		category: toSet(opts.CategoryFilters),
		color:    toSet(opts.ColorFilters),
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// Normalize assembles the canonical record. It never fails; absent fields
// become their zero values.
func (n *Normalizer) Normalize(summary crawler.ProductSummary, detail crawler.ProductDetail) crawler.CanonicalRecord {
	tags, saleTag := n.marketing(summary.ActionLabels)
	return crawler.CanonicalRecord{
		Timestamp:     summary.DiscoveredAt.Unix(),
		RPC:           summary.VendorCode,
		URL:           summary.URL,
		Title:         n.title(summary),
		MarketingTags: tags,
		Brand:         nil,
		Section:       n.section(summary.FilterLabels),
		PriceData: crawler.PriceData{
			Current:  summary.Price,
			Original: summary.PrevPrice,
			SaleTag:  saleTag,
		},
		Stock: crawler.Stock{
			InStock: summary.InStock,
			Count:   summary.Quantity,
		},
		Assets: crawler.Assets{
			MainImage: summary.ImageURL,
			SetImages: []string{},
			View360:   []string{},
			Video:     []string{},
		},
		Metadata: n.metadata(detail),
		Variants: n.variants(summary.FilterLabels),
	}
}

func (n *Normalizer) title(summary crawler.ProductSummary) string {
	var volumes []string
	for _, label := range summary.FilterLabels {
		if _, ok := n.volume[label.Filter]; ok && label.Title.Valid {
			volumes = append(volumes, label.Title.String())
		}
	}
	if len(volumes) == 0 {
		return summary.Name
	}
	for _, v := range volumes {
		if strings.Contains(summary.Name, v) {
			return summary.Name
		}
	}
	return summary.Name + ", " + strings.Join(volumes, ", ")
}

// marketing keeps every present title, empty ones included. A null or absent
// title carries no tag.
func (n *Normalizer) marketing(labels []crawler.ActionLabel) ([]string, *string) {
	tags := make([]string, 0, len(labels))
	var saleTag *string
	for _, label := range labels {
		if !label.Title.Valid {
			continue
		}
		title := label.Title.String()
		tags = append(tags, title)
		if saleTag == nil {
			saleTag = &title
		}
	}
	return tags, saleTag
}

func (n *Normalizer) section(labels []crawler.FilterLabel) []string {
	section := []string{}
	for _, label := range labels {
		_, isCategory := n.category[label.Filter]
		_, isColor := n.color[label.Filter]
		if !isCategory && !isColor {
			continue
		}
		if title := label.Title.String(); title != "" {
			section = append(section, title)
		}
	}
	return section
}

func (n *Normalizer) metadata(detail crawler.ProductDetail) *crawler.Metadata {
	md := crawler.NewMetadata()
	for _, block := range detail.TextBlocks {
		if block.Title == n.opts.DescriptionTitle {
			md.Set(n.opts.DescriptionKey, n.description(block.Content))
			break
		}
	}
	for _, block := range detail.DescriptionBlocks {
		if block.Title == "" {
			continue
		}
		switch block.Type {
		case crawler.BlockSelect:
			names := make([]string, 0, len(block.Values))
			for _, v := range block.Values {
				if v.Name.Valid {
					names = append(names, v.Name.String())
				}
			}
			md.Set(block.Title, strings.Join(names, ", "))
		case crawler.BlockRange:
			md.Set(block.Title, FormatRange(block.Min, block.Max, block.Unit))
		}
	}
	md.Set(n.opts.VendorCodeKey, detail.VendorCode.String())
	md.Set(n.opts.CountryKey, detail.CountryName)
	return md
}

func (n *Normalizer) description(content string) string {
	if !n.opts.StripDescriptionHTML || !strings.Contains(content, "<") {
		return content
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	return strings.TrimSpace(doc.Text())
}

func (n *Normalizer) variants(labels []crawler.FilterLabel) int {
	kinds := map[string]struct{}{}
	for _, label := range labels {
		if _, ok := n.color[label.Filter]; ok {
			kinds["color"] = struct{}{}
		}
		if _, ok := n.volume[label.Filter]; ok {
			kinds["volume"] = struct{}{}
		}
	}
	count := len(kinds)
	if count <= 2 {
		count = 1
	}
	return count
}

// FormatRange renders a numeric range block: "{min}{unit}" when both ends are
// equal, "{min}–{max}{unit}" otherwise.
func FormatRange(minVal, maxVal crawler.FlexNumber, unit string) string {
	if minVal.Equal(maxVal) {
		return minVal.String() + unit
	}
	return minVal.String() + "–" + maxVal.String() + unit
}
