package config

import (
	"reflect"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"
)

// decimalParsers lets money and rate settings be declared as decimal.Decimal.
func decimalParsers() map[reflect.Type]env.ParserFunc {
	return map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(decimal.Decimal{}): func(v string) (any, error) {
			return decimal.NewFromString(v)
		},
	}
}
