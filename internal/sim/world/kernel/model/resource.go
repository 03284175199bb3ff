package model

import "github.com/shopspring/decimal"

type ResourceCell struct {
	ID    CellID          `json:"id"`
	Pos   Vec2            `json:"pos"`
	Good  string          `json:"good"`
	Stock decimal.Decimal `json:"stock"`
	Cap   decimal.Decimal `json:"cap"`

	LastHarvestTick uint64 `json:"last_harvest_tick"`
	Harvested       bool   `json:"harvested"`
}
