package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Sport identifies the league a prop belongs to
type Sport string

const (
	SportNBA Sport = "NBA"
	SportMLB Sport = "MLB"
	SportNFL Sport = "NFL"
)

// PropType identifies the statistic a player prop is written against
type PropType string

const (
	PropTypePoints             PropType = "POINTS"
	PropTypeAssists            PropType = "ASSISTS"
	PropTypeRebounds           PropType = "REBOUNDS"
	PropTypeHits               PropType = "HITS"
	PropTypeHomeRuns           PropType = "HOME_RUNS"
	PropTypeRBI                PropType = "RBI"
	PropTypeStrikeoutsPitcher  PropType = "STRIKEOUTS_PITCHER"
	PropTypeWalks              PropType = "WALKS"
	PropTypeStolenBases        PropType = "STOLEN_BASES"
	PropTypeOutsRecorded       PropType = "OUTS_RECORDED"
	PropTypeInningsPitched     PropType = "INNINGS_PITCHED"
	PropTypeReceivingYards     PropType = "RECEIVING_YARDS"
	PropTypeRushingYards       PropType = "RUSHING_YARDS"
	PropTypePassingCompletions PropType = "PASSING_COMPLETIONS"
)

// PayoutSchema encodes how a winning wager pays. The schema string is part of
// the valuation hash, so its encoding must stay stable across runs:
//
//	"flat"           fixed multiplier, pick the better of over/under
//	"standard"       even-money two-sided market
//	"american:-110"  American odds
//	"decimal:1.91"   decimal odds
type PayoutSchema string

const (
	PayoutSchemaFlat     PayoutSchema = "flat"
	PayoutSchemaStandard PayoutSchema = "standard"
)

// AmericanOdds extracts the odds from an "american:<odds>" schema.
func (p PayoutSchema) AmericanOdds() (float64, bool) {
	return p.oddsWithPrefix("american:")
}

// DecimalOdds extracts the odds from a "decimal:<odds>" schema.
func (p PayoutSchema) DecimalOdds() (float64, bool) {
	return p.oddsWithPrefix("decimal:")
}

func (p PayoutSchema) oddsWithPrefix(prefix string) (float64, bool) {
	s := string(p)
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	odds, err := strconv.ParseFloat(strings.TrimPrefix(s, prefix), 64)
	if err != nil {
		return 0, false
	}
	return odds, true
}

// AmericanPayoutSchema builds the schema string for American odds.
func AmericanPayoutSchema(odds float64) PayoutSchema {
	return PayoutSchema(fmt.Sprintf("american:%g", odds))
}

// DecimalPayoutSchema builds the schema string for decimal odds.
func DecimalPayoutSchema(odds float64) PayoutSchema {
	return PayoutSchema(fmt.Sprintf("decimal:%g", odds))
}

// Prop is the catalog view of a player prop market. The catalog itself lives
// outside this module; props are referenced by external int64 IDs.
type Prop struct {
	PropID       int64        `db:"prop_id" json:"prop_id"`
	PlayerID     int64        `db:"player_id" json:"player_id"`
	Sport        Sport        `db:"sport" json:"sport"`
	PropType     PropType     `db:"prop_type" json:"prop_type"`
	OfferedLine  float64      `db:"offered_line" json:"offered_line"`
	PayoutSchema PayoutSchema `db:"payout_schema" json:"payout_schema"`
	Active       bool         `db:"active" json:"active"`
}
