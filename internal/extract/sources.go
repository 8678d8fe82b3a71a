package extract

const (
	amazonResult     = `div[data-component-type="s-search-result"]`
	labeledPriceJSON = `"price"\s*:\s*"?([0-9][0-9.,]*)`
)

// Amazon search results render the price split into whole and fraction spans.
func Amazon() Source {
	return Source{
		ID:        "amazon",
		SearchURL: "https://www.amazon.es/s?k={query}&rh=p_36%3A800-4000",
		Methods: Chain{
			SplitPrice(amazonResult, ".a-price-whole", ".a-price-fraction"),
			ScopedSelector(amazonResult, ".a-price .a-offscreen"),
			JSONLD(),
			MustRegex(`"priceAmount"\s*:\s*([0-9][0-9.]*)`),
		},
	}
}

// PcComponentes lists products as article cards carrying a data-id.
func PcComponentes() Source {
	return Source{
		ID:        "pccomponentes",
		SearchURL: "https://www.pccomponentes.com/buscar?q={query}",
		Methods: Chain{
			JSONLD(),
			ScopedSelector("article[data-id]", `.price, [data-testid="price"]`),
			MetaPrice(),
			MustRegex(labeledPriceJSON),
		},
	}
}

// MediaMarkt renders prices client-side; the structured data is the most stable.
func MediaMarkt() Source {
	return Source{
		ID:        "mediamarkt",
		SearchURL: "https://www.mediamarkt.es/es/search.html?query={query}",
		Methods: Chain{
			JSONLD(),
			Selector(`span[font-weight="bold"], .price, [data-test="price"]`),
			MetaPrice(),
			MustRegex(labeledPriceJSON),
		},
	}
}

// DefaultRegistry returns the built-in sources.
func DefaultRegistry() *Registry {
	return NewRegistry(Amazon(), PcComponentes(), MediaMarkt())
}
