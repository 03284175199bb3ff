package model

import "strconv"

// AgentID 0 means "none" (no partner, no agent).
type AgentID uint32

// MarketID 0 means "not assigned".
type MarketID uint32

// CellID is y*width+x+1 so that 0 can mean "no cell".
type CellID uint32

func (id AgentID) String() string  { return "A" + strconv.FormatUint(uint64(id), 10) }
func (id MarketID) String() string { return "M" + strconv.FormatUint(uint64(id), 10) }
func (id CellID) String() string   { return "C" + strconv.FormatUint(uint64(id), 10) }

// PairKey orders a pair as (min, max).
func PairKey(a, b AgentID) [2]AgentID {
	if a > b {
		a, b = b, a
	}
	return [2]AgentID{a, b}
}
