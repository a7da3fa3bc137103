package pricing

import (
	"strconv"
	"strings"
)

// Base prices per product line, in tokens.
const (
	CustomCourseBase = 3000
	AIStrategyBase   = 20000
)

// Flat surcharges applied on top of the base price.
const (
	ExtraMarketSurcharge    = 500
	SecondLanguageSurcharge = 500
	PerInstrumentSurcharge  = 100
)

// Selections captures every pricing-relevant choice a buyer can make.
// Unrecognized or empty values contribute zero surcharge.
type Selections struct {
	Preset          string
	Market          string
	Timeframe       string
	RiskPerTrade    string
	MaxTradesPerDay string
	Instruments     string
	DetailLevel     string
	Experience      string
	DepositBracket  string
	RiskTolerance   string
	Markets         []string
	TradingStyle    string
	Languages       []string
}

var presetSurcharges = map[string]int{
	"scalping":     300,
	"day_trading":  200,
	"swing":        100,
	"position":     100,
	"conservative": 0,
}

var marketSurcharges = map[string]int{
	"crypto":      300,
	"forex":       200,
	"stocks":      200,
	"commodities": 100,
	"indices":     100,
}

var timeframeSurcharges = map[string]int{
	"m1":  300,
	"m5":  300,
	"m15": 200,
	"h1":  100,
	"h4":  0,
	"d1":  0,
}

var detailLevelSurcharges = map[string]int{
	"basic":    0,
	"standard": 200,
	"deep":     500,
}

var experienceSurcharges = map[string]int{
	"beginner":     0,
	"intermediate": 100,
	"advanced":     200,
}

var depositBracketSurcharges = map[string]int{
	"under_1k":  0,
	"1k_10k":    100,
	"10k_100k":  200,
	"over_100k": 300,
}

var riskToleranceSurcharges = map[string]int{
	"low":        0,
	"moderate":   100,
	"high":       300,
	"aggressive": 500,
}

var tradingStyleSurcharges = map[string]int{
	"trend":     0,
	"breakout":  100,
	"reversal":  200,
	"news":      300,
	"algo_like": 300,
}

// CustomCoursePrice returns the token price of a custom course request.
func CustomCoursePrice(sel Selections) int {
	return price(CustomCourseBase, sel)
}

// AIStrategyPrice returns the token price of an AI strategy run.
func AIStrategyPrice(sel Selections) int {
	return price(AIStrategyBase, sel)
}

func price(base int, sel Selections) int {
	total := base
	total += lookup(presetSurcharges, sel.Preset)
	total += lookup(marketSurcharges, sel.Market)
	total += lookup(timeframeSurcharges, sel.Timeframe)
	total += lookup(detailLevelSurcharges, sel.DetailLevel)
	total += lookup(experienceSurcharges, sel.Experience)
	total += lookup(depositBracketSurcharges, sel.DepositBracket)
	total += lookup(riskToleranceSurcharges, sel.RiskTolerance)
	total += lookup(tradingStyleSurcharges, sel.TradingStyle)
	total += riskPerTradeSurcharge(sel.RiskPerTrade)
	total += maxTradesSurcharge(sel.MaxTradesPerDay)
	total += instrumentSurcharge(sel.Instruments)
	total += extraMarketsSurcharge(sel.Markets)
	total += languagesSurcharge(sel.Languages)
	return total
}

func lookup(table map[string]int, key string) int {
	return table[normalize(key)]
}

// riskPerTradeSurcharge maps the percent-of-account risk string through
// banded thresholds. Unparsable input contributes zero.
func riskPerTradeSurcharge(value string) int {
	risk, err := strconv.ParseFloat(strings.TrimSuffix(normalize(value), "%"), 64)
	if err != nil {
		return 0
	}
	switch {
	case risk < 1:
		return 0
	case risk <= 2:
		return 300
	default:
		return 500
	}
}

func maxTradesSurcharge(value string) int {
	trades, err := strconv.Atoi(normalize(value))
	if err != nil {
		return 0
	}
	switch {
	case trades <= 5:
		return 0
	case trades <= 15:
		return 300
	default:
		return 500
	}
}

// instrumentSurcharge counts comma-separated entries, skipping empties.
func instrumentSurcharge(list string) int {
	count := 0
	for _, item := range strings.Split(list, ",") {
		if strings.TrimSpace(item) != "" {
			count++
		}
	}
	return count * PerInstrumentSurcharge
}

// extraMarketsSurcharge charges for every selected market beyond the first.
func extraMarketsSurcharge(markets []string) int {
	count := 0
	for _, market := range markets {
		if strings.TrimSpace(market) != "" {
			count++
		}
	}
	if count <= 1 {
		return 0
	}
	return (count - 1) * ExtraMarketSurcharge
}

// languagesSurcharge charges a flat fee when a second output language is requested.
func languagesSurcharge(languages []string) int {
	count := 0
	for _, lang := range languages {
		if strings.TrimSpace(lang) != "" {
			count++
		}
	}
	if count >= 2 {
		return SecondLanguageSurcharge
	}
	return 0
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
