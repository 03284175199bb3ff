package snapshot

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	snap := SnapshotV1{
		Header:     Header{Version: Version, WorldID: "w1", Tick: 42},
		Seed:       7,
		Width:      10,
		Height:     10,
		Goods:      []string{"apple", "money"},
		Numeraire:  "money",
		NextMarket: 3,
		Agents: []AgentV1{{
			ID:        1,
			Pos:       [2]int{2, 3},
			Inventory: map[string]string{"apple": "1.25", "money": "10"},
			Cooldowns: map[uint32]uint64{2: 50},
		}},
		Markets: []MarketV1{{
			ID:     2,
			Center: [2]int{5, 5},
			Radius: 3,
			Prices: map[string]string{"apple": "1.1"},
			History: []PricePointV1{
				{Tick: 40, Good: "apple", Price: "1.1", Qty: "2"},
			},
		}},
		Cells: []CellV1{{ID: 12, Pos: [2]int{1, 1}, Good: "apple", Stock: "3", Cap: "5", Active: true}},
	}
	path := filepath.Join(dir, FileName(42))
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, snap) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, snap)
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := Latest(dir); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("empty dir: err=%v", err)
	}
	for _, tick := range []uint64{5, 120, 30} {
		snap := SnapshotV1{Header: Header{Version: Version, Tick: tick}}
		if err := WriteSnapshot(filepath.Join(dir, FileName(tick)), snap); err != nil {
			t.Fatalf("write %d: %v", tick, err)
		}
	}
	path, tick, err := Latest(dir)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if tick != 120 || filepath.Base(path) != FileName(120) {
		t.Fatalf("latest = %s (%d)", path, tick)
	}
}
