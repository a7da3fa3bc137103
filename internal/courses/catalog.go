package courses

// CatalogItem is one fixed-price course in the catalog.
type CatalogItem struct {
	Ref       string
	Title     string
	Price     int64
	Languages []string
}

// defaultCatalog is the launch lineup. Prices are tokens.
var defaultCatalog = []CatalogItem{
	{Ref: "trading-foundations", Title: "Trading Foundations", Price: 1000, Languages: []string{"en", "de", "es"}},
	{Ref: "risk-management-essentials", Title: "Risk Management Essentials", Price: 1500, Languages: []string{"en", "de"}},
	{Ref: "crypto-market-structure", Title: "Crypto Market Structure", Price: 2000, Languages: []string{"en"}},
	{Ref: "forex-price-action", Title: "Forex Price Action", Price: 2000, Languages: []string{"en", "es"}},
	{Ref: "futures-day-trading", Title: "Futures Day Trading", Price: 2500, Languages: []string{"en"}},
}

// Catalog resolves course refs to fixed catalog items.
type Catalog struct {
	byRef map[string]CatalogItem
}

// NewCatalog builds the default catalog.
func NewCatalog() *Catalog {
	byRef := make(map[string]CatalogItem, len(defaultCatalog))
	for _, item := range defaultCatalog {
		byRef[item.Ref] = item
	}
	return &Catalog{byRef: byRef}
}

// Find returns the item for ref, or false when the ref is unknown.
func (c *Catalog) Find(ref string) (CatalogItem, bool) {
	item, ok := c.byRef[ref]
	return item, ok
}

// Items lists the catalog in its fixed display order.
func (c *Catalog) Items() []CatalogItem {
	items := make([]CatalogItem, len(defaultCatalog))
	copy(items, defaultCatalog)
	return items
}

// SupportsLanguage reports whether the item ships in the given language.
func (i CatalogItem) SupportsLanguage(language string) bool {
	for _, candidate := range i.Languages {
		if candidate == language {
			return true
		}
	}
	return false
}
