package config

import (
	"fmt"
	"os"

	"github.com/trebuchet-org/forkctl/internal/domain/models"
	"gopkg.in/yaml.v3"
)

// fixtureFile is the YAML layout of a price fixtures file:
//
//	fixtures:
//	  - token: "0x6B17..."
//	    symbol: DAI
//	    price: "1000000000000000000"
//	    precision: 18
//	    whale: "0x..."
//	    amount: "500000000000000000000"
type fixtureFile struct {
	Fixtures []models.PriceFixture `yaml:"fixtures"`
}

// LoadFixtures reads price fixtures from a YAML file
func LoadFixtures(path string) ([]models.PriceFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures %s: %w", path, err)
	}
	for i, f := range file.Fixtures {
		if f.Price == "" {
			return nil, fmt.Errorf("fixture %d (%s) has no price", i, f.Token.Hex())
		}
	}
	return file.Fixtures, nil
}
