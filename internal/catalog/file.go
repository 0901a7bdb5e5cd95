package catalog

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
)

type fileLayout struct {
	Categories map[string][]model.TimePackage `mapstructure:"categories"`
}

// LoadFile は価格表ファイル(YAML/JSON/TOML)からカタログを読み込みます
// path が空の場合は組み込みの価格表を返します
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var layout fileLayout
	if err := v.Unmarshal(&layout); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", path, err)
	}
	if len(layout.Categories) == 0 {
		return nil, fmt.Errorf("catalog: %s has no categories", path)
	}

	packages := make(map[model.Category][]model.TimePackage, len(layout.Categories))
	for name, list := range layout.Categories {
		packages[model.ParseCategory(name)] = list
	}
	return New(packages)
}
