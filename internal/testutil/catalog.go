package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"rentcat/internal/catalog"
)

// SampleCatalog returns a small valid catalog:
//
//	elektronarzedzia/wiertarki/{wiertarka-1, wiertarka-2}
//	elektronarzedzia/szlifierki (empty)
//	ogrod/kosiarki/kosiarka-1
func SampleCatalog() catalog.Catalog {
	disabled := false
	return catalog.Catalog{
		{
			Name:  "Elektronarzędzia",
			Image: "img/elektro.jpg",
			Subcategories: []catalog.Subcategory{
				{
					Name:        "Wiertarki",
					Description: "Wiertarki udarowe",
					Tools: []catalog.Tool{
						{
							ID: "wiertarka-1", Name: "Wiertarka udarowa", Image: "img/w1.jpg",
							Pricing: catalog.NewPricing(
								catalog.PriceEntry{Label: "1-3 Dni", Value: catalog.Num(40)},
								catalog.PriceEntry{Label: "4-7 Dni", Value: catalog.Num(35)},
							),
						},
						{
							ID: "wiertarka-2", Name: "Wkrętarka", Image: "img/w2.jpg",
							Pricing: catalog.NewPricing(catalog.PriceEntry{Label: "1 dzień", Value: catalog.Num(25)}),
							Enabled: &disabled,
						},
					},
				},
				{Name: "Szlifierki", Tools: []catalog.Tool{}},
			},
		},
		{
			Name:  "Ogród",
			Image: "img/ogrod.jpg",
			Subcategories: []catalog.Subcategory{
				{
					Name: "Kosiarki",
					Tools: []catalog.Tool{{
						ID: "kosiarka-1", Name: "Kosiarka spalinowa", Image: "img/k1.jpg",
						Pricing: catalog.NewPricing(catalog.PriceEntry{Label: "Weekend", Value: catalog.Text("do uzgodnienia")}),
					}},
				},
			},
		},
	}
}

// WriteCatalogFile writes c as a stored document to dir/name and returns the path.
func WriteCatalogFile(t *testing.T, dir, name string, c catalog.Catalog) string {
	t.Helper()
	raw, err := catalog.EncodeJSON(c)
	if err != nil {
		t.Fatalf("EncodeJSON() error = %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}
