package catalog

import "furniq/internal/model"

// sampleItems 内置示例目录。
//
// 数据与上游商品源的快照保持一致，ID 稳定，价格单位为 EUR。
func sampleItems() []model.FurnitureItem {
	return []model.FurnitureItem{
		{
			ID:           "ikea-ektorp-sofa",
			Name:         "EKTORP 3er-Sofa",
			ImageURL:     "https://cdn.furniq.app/items/ektorp-sofa.jpg",
			Price:        399,
			Currency:     "EUR",
			AffiliateURL: "https://www.ikea.com/de/de/p/ektorp-sofa/",
			Shop:         "IKEA",
			Style:        "Landhaus",
			Category:     "Sofa",
		},
		{
			ID:           "ikea-lerhamn-tisch",
			Name:         "LERHAMN Tisch",
			ImageURL:     "https://cdn.furniq.app/items/lerhamn-tisch.jpg",
			Price:        249,
			Currency:     "EUR",
			AffiliateURL: "https://www.ikea.com/de/de/p/lerhamn-tisch/",
			Shop:         "IKEA",
			Style:        "Skandinavisch",
			Category:     "Tisch",
		},
		{
			ID:           "ikea-ranarp-lampe",
			Name:         "RANARP Arbeitslampe",
			ImageURL:     "https://cdn.furniq.app/items/ranarp-lampe.jpg",
			Price:        35,
			Currency:     "EUR",
			AffiliateURL: "https://www.ikea.com/de/de/p/ranarp-arbeitslampe/",
			Shop:         "IKEA",
			Style:        "Skandinavisch",
			Category:     "Lampe",
		},
		{
			ID:           "ikea-poaeng-sessel",
			Name:         "POÄNG Sessel",
			ImageURL:     "https://cdn.furniq.app/items/poaeng-sessel.jpg",
			Price:        129,
			Currency:     "EUR",
			AffiliateURL: "https://www.ikea.com/de/de/p/poaeng-sessel/",
			Shop:         "IKEA",
			Style:        "Skandinavisch",
			Category:     "Sessel",
		},
		{
			ID:           "ikea-kallax-regal",
			Name:         "KALLAX Regal",
			ImageURL:     "https://cdn.furniq.app/items/kallax-regal.jpg",
			Price:        89,
			Currency:     "EUR",
			AffiliateURL: "https://www.ikea.com/de/de/p/kallax-regal/",
			Shop:         "IKEA",
			Style:        "Minimalistisch",
			Category:     "Regal",
		},
		{
			ID:           "ikea-hemnes-bett",
			Name:         "HEMNES Bettgestell",
			ImageURL:     "https://cdn.furniq.app/items/hemnes-bett.jpg",
			Price:        299,
			Currency:     "EUR",
			AffiliateURL: "https://www.ikea.com/de/de/p/hemnes-bettgestell/",
			Shop:         "IKEA",
			Style:        "Landhaus",
			Category:     "Bett",
		},
		{
			ID:           "otto-vintage-couchtisch",
			Name:         "Vintage Couchtisch Mango",
			ImageURL:     "https://cdn.furniq.app/items/vintage-couchtisch.jpg",
			Price:        219,
			Currency:     "EUR",
			AffiliateURL: "https://www.otto.de/p/vintage-couchtisch-mango/",
			Shop:         "OTTO",
			Style:        "Industrial",
			Category:     "Tisch",
		},
		{
			ID:           "otto-loft-regal",
			Name:         "Loft Regal Metall",
			ImageURL:     "https://cdn.furniq.app/items/loft-regal.jpg",
			Price:        159,
			Currency:     "EUR",
			AffiliateURL: "https://www.otto.de/p/loft-regal-metall/",
			Shop:         "OTTO",
			Style:        "Industrial",
			Category:     "Regal",
		},
		{
			ID:           "otto-boho-haengesessel",
			Name:         "Boho Hängesessel Rattan",
			ImageURL:     "https://cdn.furniq.app/items/boho-haengesessel.jpg",
			Price:        189,
			Currency:     "EUR",
			AffiliateURL: "https://www.otto.de/p/boho-haengesessel-rattan/",
			Shop:         "OTTO",
			Style:        "Boho",
			Category:     "Sessel",
		},
		{
			ID:           "home24-nordic-sofa",
			Name:         "Nordic Sofa Hellgrau",
			ImageURL:     "https://cdn.furniq.app/items/nordic-sofa.jpg",
			Price:        549,
			Currency:     "EUR",
			AffiliateURL: "https://www.home24.de/p/nordic-sofa-hellgrau/",
			Shop:         "home24",
			Style:        "Skandinavisch",
			Category:     "Sofa",
		},
		{
			ID:           "home24-eiche-esstisch",
			Name:         "Esstisch Eiche Massiv",
			ImageURL:     "https://cdn.furniq.app/items/eiche-esstisch.jpg",
			Price:        479,
			Currency:     "EUR",
			AffiliateURL: "https://www.home24.de/p/esstisch-eiche-massiv/",
			Shop:         "home24",
			Style:        "Landhaus",
			Category:     "Tisch",
		},
		{
			ID:           "home24-pendelleuchte-schwarz",
			Name:         "Pendelleuchte Schwarz Matt",
			ImageURL:     "https://cdn.furniq.app/items/pendelleuchte-schwarz.jpg",
			Price:        79,
			Currency:     "EUR",
			AffiliateURL: "https://www.home24.de/p/pendelleuchte-schwarz-matt/",
			Shop:         "home24",
			Style:        "Minimalistisch",
			Category:     "Lampe",
		},
		{
			ID:           "ikea-stockholm-teppich",
			Name:         "STOCKHOLM Teppich",
			ImageURL:     "https://cdn.furniq.app/items/stockholm-teppich.jpg",
			Price:        199,
			Currency:     "EUR",
			AffiliateURL: "https://www.ikea.com/de/de/p/stockholm-teppich/",
			Shop:         "IKEA",
			Style:        "Skandinavisch",
			Category:     "Teppich",
		},
		{
			ID:           "otto-samt-sofa-gruen",
			Name:         "Samt Sofa Dunkelgrün",
			ImageURL:     "https://cdn.furniq.app/items/samt-sofa-gruen.jpg",
			Price:        699,
			Currency:     "EUR",
			AffiliateURL: "https://www.otto.de/p/samt-sofa-dunkelgruen/",
			Shop:         "OTTO",
			Style:        "Boho",
			Category:     "Sofa",
		},
	}
}
