package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// stateDigest hashes every piece of state that influences future ticks plus
// this tick's effect log. Two runs with equal config must produce equal
// digests at every tick.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, uint64(w.nextMarket))
	w.digestAgents(h, &tmp)
	w.digestMarkets(h, &tmp)
	w.digestCells(h, &tmp)

	// Effects are plain data; their JSON form is stable (struct field order,
	// canonical decimal strings).
	for _, e := range w.cur.effects {
		b, _ := json.Marshal(e)
		digestWriteBytes(h, &tmp, b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (w *World) digestAgents(h hashWriter, tmp *[8]byte) {
	digestWriteU64(h, tmp, uint64(len(w.order)))
	for _, id := range w.order {
		a := w.agents[id]
		digestWriteU64(h, tmp, uint64(a.ID))
		digestWriteI64(h, tmp, int64(a.Pos.X))
		digestWriteI64(h, tmp, int64(a.Pos.Y))
		digestWriteU64(h, tmp, uint64(a.Partner))
		digestWriteU64(h, tmp, uint64(a.Market))
		h.Write([]byte{byte(a.Target.Kind)})
		digestWriteU64(h, tmp, uint64(a.Target.ID))
		digestWriteI64(h, tmp, int64(a.Target.Pos.X))
		digestWriteI64(h, tmp, int64(a.Target.Pos.Y))
		digestWriteDecimalMap(h, tmp, a.Inventory)

		others := make([]AgentID, 0, len(a.Cooldowns))
		for o := range a.Cooldowns {
			others = append(others, o)
		}
		sort.Slice(others, func(i, j int) bool { return others[i] < others[j] })
		digestWriteU64(h, tmp, uint64(len(others)))
		for _, o := range others {
			digestWriteU64(h, tmp, uint64(o))
			digestWriteU64(h, tmp, a.Cooldowns[o])
		}
	}
}

func (w *World) digestMarkets(h hashWriter, tmp *[8]byte) {
	ids := w.sortedMarketIDs()
	digestWriteU64(h, tmp, uint64(len(ids)))
	for _, id := range ids {
		m := w.markets[id]
		digestWriteU64(h, tmp, uint64(m.ID))
		digestWriteI64(h, tmp, int64(m.Center.X))
		digestWriteI64(h, tmp, int64(m.Center.Y))
		digestWriteI64(h, tmp, int64(m.Radius))
		digestWriteU64(h, tmp, m.FormedTick)
		digestWriteI64(h, tmp, int64(m.TicksFormed))
		digestWriteI64(h, tmp, int64(m.TicksBelowSustain))
		digestWriteU64(h, tmp, uint64(len(m.Participants)))
		for _, p := range m.Participants {
			digestWriteU64(h, tmp, uint64(p))
		}
		digestWriteDecimalMap(h, tmp, m.Prices)
		goods := make([]string, 0, len(m.LastClearTick))
		for g := range m.LastClearTick {
			goods = append(goods, g)
		}
		sort.Strings(goods)
		for _, g := range goods {
			digestWriteBytes(h, tmp, []byte(g))
			digestWriteU64(h, tmp, m.LastClearTick[g])
		}
	}
}

func (w *World) digestCells(h hashWriter, tmp *[8]byte) {
	ids := w.grid.SortedIDs()
	digestWriteU64(h, tmp, uint64(len(ids)))
	for _, id := range ids {
		c := w.grid.Cell(id)
		digestWriteU64(h, tmp, uint64(c.ID))
		digestWriteBytes(h, tmp, []byte(c.Stock.String()))
		digestWriteU64(h, tmp, c.LastHarvestTick)
		h.Write([]byte{boolByte(c.Harvested), boolByte(w.grid.IsActive(id))})
	}
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteBytes(h hashWriter, tmp *[8]byte, b []byte) {
	digestWriteU64(h, tmp, uint64(len(b)))
	h.Write(b)
}

// digestWriteDecimalMap writes non-zero entries in key order.
func digestWriteDecimalMap(h hashWriter, tmp *[8]byte, m map[string]decimal.Decimal) {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if !v.IsZero() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	digestWriteU64(h, tmp, uint64(len(keys)))
	for _, k := range keys {
		digestWriteBytes(h, tmp, []byte(k))
		digestWriteBytes(h, tmp, []byte(m[k].String()))
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
