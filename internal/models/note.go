package models

import (
	"time"
)

// ScanRequest represents a note ingestion request
type ScanRequest struct {
	// Raw access key (44 digits, separators allowed) or the full QR-code URL
	CodeOrURL string `json:"code_or_url" binding:"required" example:"35251137849063000192651250000123451055bfc670"`
}

// Note represents an ingested fiscal note
type Note struct {
	ID            int64      `json:"id" example:"42"`
	UserID        int64      `json:"user_id" example:"7"`
	AccessKeyHash string     `json:"access_key_hash" example:"b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"`
	MarketName    string     `json:"market_name" example:"SUPERMERCADO EXEMPLO LTDA"`
	MarketCNPJ    string     `json:"market_cnpj,omitempty" example:"11.222.333/0001-81"`
	MarketAddress string     `json:"market_address,omitempty" example:"RUA EXEMPLO, 123, CENTRO, SAO PAULO, SP"`
	EmissionDate  time.Time  `json:"emission_date" example:"2025-11-08T14:32:10Z"`
	TotalValue    float64    `json:"total_value" example:"152.37"`
	TotalTaxes    *float64   `json:"total_taxes,omitempty" example:"21.80"`
	CreatedAt     time.Time  `json:"created_at" example:"2025-11-08T15:00:00Z"`
	Items         []NoteItem `json:"products"`
}

// NoteItem represents a single purchased product inside a note
type NoteItem struct {
	ID         int64     `json:"id" example:"101"`
	NoteID     int64     `json:"note_id" example:"42"`
	Barcode    string    `json:"barcode,omitempty" example:"7891234567890"`
	Name       string    `json:"name" example:"F.FILE FRANGO"`
	Quantity   float64   `json:"quantity" example:"1.0"`
	Unit       string    `json:"unit" example:"KG"`
	UnitPrice  float64   `json:"unit_price" example:"12.50"`
	TotalPrice float64   `json:"total_price" example:"12.50"`
	Category   string    `json:"category,omitempty" example:"Uncategorized"`
	CreatedAt  time.Time `json:"created_at" example:"2025-11-08T15:00:00Z"`
}

// NotesListResponse represents a paginated list of notes
type NotesListResponse struct {
	Notes  []Note `json:"notes"`
	Count  int    `json:"count" example:"12"`
	Limit  int    `json:"limit" example:"20"`
	Offset int    `json:"offset" example:"0"`
}

// DashboardStats represents aggregated spending statistics for a user
type DashboardStats struct {
	TotalSpent       float64            `json:"total_spent" example:"1520.75"`
	NotesCount       int64              `json:"notes_count" example:"12"`
	ProductsCount    int64              `json:"products_count" example:"148"`
	CategorySpending []CategorySpending `json:"category_spending"`
}

// CategorySpending represents total spending for one product category
type CategorySpending struct {
	Category string  `json:"category" example:"Uncategorized"`
	Total    float64 `json:"total" example:"1520.75"`
}
