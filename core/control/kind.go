package control

import (
	"fmt"
	"strings"
)

// Kind identifies a control strategy.
type Kind int

const (
	ProductionSaving Kind = iota + 1
	InstalledPowerLimit
	BlockPowerReduction
	MonthlyBlockPowerReduction
	MTVTShifting
	FiveTariffManoeuvring
)

var kindNames = map[Kind]string{
	ProductionSaving:           "production_saving",
	InstalledPowerLimit:        "installed_power",
	BlockPowerReduction:        "block_power",
	MonthlyBlockPowerReduction: "monthly_block_power",
	MTVTShifting:               "mtvt_shifting",
	FiveTariffManoeuvring:      "five_tariff",
}

// Kinds lists every strategy in declaration order.
func Kinds() []Kind {
	return []Kind{
		ProductionSaving,
		InstalledPowerLimit,
		BlockPowerReduction,
		MonthlyBlockPowerReduction,
		MTVTShifting,
		FiveTariffManoeuvring,
	}
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind accepts the strategy tag, case-insensitively, with dashes or
// underscores.
func ParseKind(s string) (Kind, error) {
	tag := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, k := range Kinds() {
		if kindNames[k] == tag {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown strategy %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown strategy %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// UsesLimits reports whether the strategy fills Result.Limits.
func (k Kind) UsesLimits() bool {
	switch k {
	case InstalledPowerLimit, BlockPowerReduction, MonthlyBlockPowerReduction:
		return true
	}
	return false
}
