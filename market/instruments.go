package market

import "strings"

// InstrumentMeta carries the contract economics for one symbol. Margin and
// P/L math in the ledger run entirely off this table; nothing is inferred
// from the symbol string at trade time.
type InstrumentMeta struct {
	Symbol string `yaml:"symbol"`

	// ContractSize is the units per 1.0 lot (100 oz for gold, 100k for FX).
	ContractSize float64 `yaml:"contract_size"`

	// MarginRate is the fraction of notional reserved as margin.
	MarginRate float64 `yaml:"margin_rate"`

	// PipSize is the price increment of one pip.
	PipSize float64 `yaml:"pip_size"`

	// PipValuePerLot converts one pip of movement on 1.0 lot into account
	// currency. The default table keeps the fixed 10-per-pip convention for
	// every symbol, which approximates a USD-quoted account; override per
	// instrument for exact contract economics.
	PipValuePerLot float64 `yaml:"pip_value_per_lot"`

	MinLot float64 `yaml:"min_lot"`
	MaxLot float64 `yaml:"max_lot"`
}

// PipValue returns the account-currency value of one pip for the given lot
// size.
func (m InstrumentMeta) PipValue(lots float64) float64 {
	return m.PipValuePerLot * lots
}

// Instruments is the default metadata table. Callers may pass their own
// table to Lookup or to the ledger; this one covers the symbols the bundled
// datasets use.
var Instruments = map[string]InstrumentMeta{
	"XAUUSD": {
		Symbol:         "XAUUSD",
		ContractSize:   100,
		MarginRate:     0.02,
		PipSize:        0.0001,
		PipValuePerLot: 10,
		MinLot:         0.01,
		MaxLot:         0.1,
	},
	"EURUSD": {
		Symbol:         "EURUSD",
		ContractSize:   100_000,
		MarginRate:     0.01,
		PipSize:        0.0001,
		PipValuePerLot: 10,
		MinLot:         0.01,
		MaxLot:         0.1,
	},
	"GBPUSD": {
		Symbol:         "GBPUSD",
		ContractSize:   100_000,
		MarginRate:     0.01,
		PipSize:        0.0001,
		PipValuePerLot: 10,
		MinLot:         0.01,
		MaxLot:         0.1,
	},
	"USDJPY": {
		Symbol:         "USDJPY",
		ContractSize:   100_000,
		MarginRate:     0.01,
		PipSize:        0.01,
		PipValuePerLot: 10,
		MinLot:         0.01,
		MaxLot:         0.1,
	},
}

// Lookup finds metadata for symbol in table (or the default Instruments
// table when table is nil). Unknown symbols fall back to standard FX
// economics so a backtest on a new pair still runs; callers that need exact
// contract math should register the instrument.
func Lookup(table map[string]InstrumentMeta, symbol string) InstrumentMeta {
	if table == nil {
		table = Instruments
	}
	if m, ok := table[strings.ToUpper(symbol)]; ok {
		return m
	}
	return InstrumentMeta{
		Symbol:         strings.ToUpper(symbol),
		ContractSize:   100_000,
		MarginRate:     0.01,
		PipSize:        0.0001,
		PipValuePerLot: 10,
		MinLot:         0.01,
		MaxLot:         0.1,
	}
}
