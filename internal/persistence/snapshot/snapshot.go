package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	// Tick is the next tick the restored world will execute.
	Tick uint64 `json:"tick"`
}

// SnapshotV1 is the full mutable world state. Decimals are carried as
// canonical strings so snapshots are exact and diffable.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed      int64    `json:"seed"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Goods     []string `json:"goods"`
	Numeraire string   `json:"numeraire"`

	NextMarket uint32 `json:"next_market"`

	Agents  []AgentV1  `json:"agents"`
	Markets []MarketV1 `json:"markets"`
	Cells   []CellV1   `json:"cells"`
}

type AgentV1 struct {
	ID        uint32            `json:"id"`
	Pos       [2]int            `json:"pos"`
	Inventory map[string]string `json:"inventory"`
	Partner   uint32            `json:"partner,omitempty"`
	Market    uint32            `json:"market,omitempty"`

	TargetKind string `json:"target_kind,omitempty"`
	TargetID   uint32 `json:"target_id,omitempty"`
	TargetPos  [2]int `json:"target_pos,omitempty"`

	Cooldowns map[uint32]uint64 `json:"cooldowns,omitempty"`
}

type MarketV1 struct {
	ID           uint32   `json:"id"`
	Center       [2]int   `json:"center"`
	Radius       int      `json:"radius"`
	Participants []uint32 `json:"participants,omitempty"`

	Prices        map[string]string `json:"prices,omitempty"`
	LastClearTick map[string]uint64 `json:"last_clear_tick,omitempty"`
	History       []PricePointV1    `json:"history,omitempty"`

	FormedTick        uint64 `json:"formed_tick"`
	TicksFormed       int    `json:"ticks_formed"`
	TicksBelowSustain int    `json:"ticks_below_sustain"`
}

type PricePointV1 struct {
	Tick  uint64 `json:"tick"`
	Good  string `json:"good"`
	Price string `json:"price"`
	Qty   string `json:"qty"`
}

type CellV1 struct {
	ID              uint32 `json:"id"`
	Pos             [2]int `json:"pos"`
	Good            string `json:"good"`
	Stock           string `json:"stock"`
	Cap             string `json:"cap"`
	LastHarvestTick uint64 `json:"last_harvest_tick,omitempty"`
	Harvested       bool   `json:"harvested,omitempty"`
	Active          bool   `json:"active,omitempty"`
}

// FileName is the conventional snapshot name for a tick; names sort by tick.
func FileName(tick uint64) string {
	return fmt.Sprintf("%012d.snap.zst", tick)
}

func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is for humans and tools; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

var ErrNoSnapshot = errors.New("no snapshot found")

// Latest returns the path of the highest-tick snapshot in dir.
func Latest(dir string) (string, uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, ErrNoSnapshot
		}
		return "", 0, err
	}
	type cand struct {
		name string
		tick uint64
	}
	var cs []cand
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		t, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		cs = append(cs, cand{name, t})
	}
	if len(cs) == 0 {
		return "", 0, ErrNoSnapshot
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].tick < cs[j].tick })
	last := cs[len(cs)-1]
	return filepath.Join(dir, last.name), last.tick, nil
}
