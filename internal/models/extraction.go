package models

import "time"

// ExtractedNote is the result of scraping one consultation page.
// It is what the extraction pipeline produces before anything is persisted,
// and what the cache stores keyed by access-key hash.
type ExtractedNote struct {
	AccessKey     string             `json:"access_key"`
	MarketName    string             `json:"market_name"`
	MarketCNPJ    string             `json:"market_cnpj,omitempty"`
	MarketAddress string             `json:"market_address,omitempty"`
	EmissionDate  time.Time          `json:"emission_date"`
	TotalValue    float64            `json:"total_value"`
	TotalTaxes    *float64           `json:"total_taxes,omitempty"`
	Products      []ExtractedProduct `json:"products"`
}

// ExtractedProduct is one line item scraped from the results table
type ExtractedProduct struct {
	Barcode    string  `json:"barcode,omitempty"`
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
	Category   string  `json:"category"`
}
