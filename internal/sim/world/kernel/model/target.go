package model

type TargetKind uint8

const (
	TargetNone TargetKind = iota
	TargetAgent
	TargetResource
	TargetMarket
)

func (k TargetKind) String() string {
	switch k {
	case TargetAgent:
		return "agent"
	case TargetResource:
		return "resource"
	case TargetMarket:
		return "market"
	default:
		return "none"
	}
}

func (k TargetKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *TargetKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "agent":
		*k = TargetAgent
	case "resource":
		*k = TargetResource
	case "market":
		*k = TargetMarket
	default:
		*k = TargetNone
	}
	return nil
}

// Target is where an agent is heading. ID is an AgentID, CellID or MarketID
// depending on Kind. Pos is the position at selection time; agent targets are
// re-resolved against the partner's current position when moving.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   uint32     `json:"id"`
	Pos  Vec2       `json:"pos"`
}

func (t Target) IsZero() bool { return t.Kind == TargetNone }
