// market/spec.go
package market

// Spec is the static trading specification of a contract.
type Spec struct {
	// Multiplier converts a price move into cash per contract unit.
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
	// PriceTick is the minimum price increment.
	PriceTick float64 `json:"price_tick" yaml:"price_tick"`
}

func (s Spec) Validate(c Contract) error {
	if s.Multiplier <= 0 {
		return &ConfigError{Field: "contracts." + string(c) + ".multiplier", Reason: "must be positive"}
	}
	if s.PriceTick <= 0 {
		return &ConfigError{Field: "contracts." + string(c) + ".price_tick", Reason: "must be positive"}
	}
	return nil
}

type SpecProvider interface {
	Spec(c Contract) (Spec, error)
}

// Specs is a map backed SpecProvider.
type Specs map[Contract]Spec

func (s Specs) Spec(c Contract) (Spec, error) {
	spec, ok := s[c]
	if !ok {
		return Spec{}, &ConfigError{Field: "contracts." + string(c), Reason: "no contract specification"}
	}
	if err := spec.Validate(c); err != nil {
		return Spec{}, err
	}
	return spec, nil
}
