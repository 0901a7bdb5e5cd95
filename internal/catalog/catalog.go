// Package catalog は カテゴリごとの時間パッケージ一覧を提供します。
// 一覧は静的なテーブルで、PackagesFor は何度呼び出しても同じ結果を返します。
package catalog

import (
	"fmt"

	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
)

// DefaultNightStartHour は夜間パッケージの開始時刻です
const DefaultNightStartHour = 22

// Catalog はカテゴリごとの時間パッケージを保持します
type Catalog struct {
	packages map[model.Category][]model.TimePackage
}

var defaultPackages = map[model.Category][]model.TimePackage{
	model.CategoryStandard: {
		{Name: "1 hour", DurationHours: 1, Price: 900},
		{Name: "2+1 hours", DurationHours: 3, Price: 1800},
		{Name: "3+2 hours", DurationHours: 5, Price: 2700},
		{Name: "Night package", DurationHours: 10, Price: 3000, IsNightOnly: true},
	},
	model.CategoryPremium: {
		{Name: "1 hour", DurationHours: 1, Price: 1400},
		{Name: "2+1 hours", DurationHours: 3, Price: 2800},
		{Name: "3+2 hours", DurationHours: 5, Price: 4200},
		{Name: "Night package", DurationHours: 10, Price: 4500, IsNightOnly: true},
	},
	model.CategoryBootcamp: {
		{Name: "1 hour", DurationHours: 1, Price: 1400},
		{Name: "2+1 hours", DurationHours: 3, Price: 2800},
		{Name: "3+2 hours", DurationHours: 5, Price: 4200},
		{Name: "Night package", DurationHours: 10, Price: 4500, IsNightOnly: true},
	},
}

// Default は組み込みの価格表を使うカタログを返します
func Default() *Catalog {
	c, err := New(defaultPackages)
	if err != nil {
		// 組み込みテーブルは常に妥当
		panic(err)
	}
	return c
}

// New は与えられた価格表を検証してカタログを作成します
func New(packages map[model.Category][]model.TimePackage) (*Catalog, error) {
	if _, ok := packages[model.CategoryStandard]; !ok {
		return nil, fmt.Errorf("catalog: category %s is required", model.CategoryStandard)
	}
	copied := make(map[model.Category][]model.TimePackage, len(packages))
	for category, list := range packages {
		if err := validate(category, list); err != nil {
			return nil, err
		}
		copied[category] = append([]model.TimePackage(nil), list...)
	}
	return &Catalog{packages: copied}, nil
}

func validate(category model.Category, list []model.TimePackage) error {
	if len(list) < 3 || len(list) > 4 {
		return fmt.Errorf("catalog: category %s must have 3-4 packages, got %d", category, len(list))
	}
	nights := 0
	names := make(map[string]struct{}, len(list))
	for _, p := range list {
		if p.Name == "" {
			return fmt.Errorf("catalog: category %s has a package without a name", category)
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("catalog: category %s has duplicate package %q", category, p.Name)
		}
		names[p.Name] = struct{}{}
		if p.DurationHours <= 0 {
			return fmt.Errorf("catalog: package %q must have a positive duration", p.Name)
		}
		if p.Price < 0 {
			return fmt.Errorf("catalog: package %q must have a non-negative price", p.Name)
		}
		if p.IsNightOnly {
			nights++
		}
	}
	if nights != 1 {
		return fmt.Errorf("catalog: category %s must have exactly one night package, got %d", category, nights)
	}
	return nil
}

// PackagesFor はカテゴリのパッケージ一覧を順序通りに返します
// 未登録のカテゴリは Standard の一覧を返します
func (c *Catalog) PackagesFor(category model.Category) []model.TimePackage {
	list, ok := c.packages[category]
	if !ok {
		list = c.packages[model.CategoryStandard]
	}
	return append([]model.TimePackage(nil), list...)
}

// Lookup はカテゴリとパッケージ名からパッケージを探します
func (c *Catalog) Lookup(category model.Category, name string) (model.TimePackage, bool) {
	for _, p := range c.PackagesFor(category) {
		if p.Name == name {
			return p, true
		}
	}
	return model.TimePackage{}, false
}
