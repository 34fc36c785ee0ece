package crawler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEndpoints(t *testing.T) {
	t.Parallel()

	e := Endpoints{BaseURL: "https://alkoteka.com/", CityUUID: "city-1", PerPage: 20}

	require.Equal(t,
		"https://alkoteka.com/web-api/v1/product?city_uuid=city-1&page=3&per_page=20&root_category_slug=aksessuary-2",
		e.ListingURL("aksessuary-2", 3),
	)
	require.Equal(t,
		"https://alkoteka.com/web-api/v1/product/absolut-07?city_uuid=city-1",
		e.DetailURL("absolut-07"),
	)
}

func TestSlugFromURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://alkoteka.com/product/vodka/absolut-07":  "absolut-07",
		"https://alkoteka.com/product/vodka/absolut-07/": "absolut-07",
		"/product/vodka/absolut-07?x=1":                  "absolut-07",
		"absolut-07":                                     "absolut-07",
		"":                                               "",
		"   ":                                            "",
	}
	for in, want := range cases {
		require.Equal(t, want, SlugFromURL(in), "input %q", in)
	}
}

func TestStatusErrorMatchesTransport(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("listing page: %w", &StatusError{URL: "u", StatusCode: 503})
	require.True(t, errors.Is(err, ErrTransport))
	require.True(t, IsDropCause(err))
	require.False(t, IsDropCause(errors.New("other")))
	require.Contains(t, err.Error(), "unexpected status 503")
}
