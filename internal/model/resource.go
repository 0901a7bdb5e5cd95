package model

import (
	"strings"
	"time"
)

// Category はコンピューターのカテゴリです
type Category string

const (
	CategoryStandard Category = "standard"
	CategoryPremium  Category = "premium"
	CategoryBootcamp Category = "bootcamp"
)

// ParseCategory は文字列をカテゴリに変換します
// 未知の値は Standard として扱います
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(CategoryPremium), "vip", "вип":
		return CategoryPremium
	case string(CategoryBootcamp):
		return CategoryBootcamp
	default:
		return CategoryStandard
	}
}

// Resource は予約可能なコンピューターです
// IsAvailable は予約と同じトランザクション内でのみ更新される非正規化フラグです
type Resource struct {
	ID          string   `db:"id" json:"id"`
	Name        string   `db:"name" json:"name"`
	Category    Category `db:"category" json:"category"`
	IsAvailable bool     `db:"is_available" json:"is_available"`
}

// TimePackage は購入可能な時間パッケージです
type TimePackage struct {
	Name          string  `json:"name" mapstructure:"name"`
	DurationHours int     `json:"duration_hours" mapstructure:"duration_hours"`
	Price         float64 `json:"price" mapstructure:"price"`
	IsNightOnly   bool    `json:"is_night_only" mapstructure:"is_night_only"`
}

// Duration はパッケージの時間を返します
func (p TimePackage) Duration() time.Duration {
	return time.Duration(p.DurationHours) * time.Hour
}
