package storage

import "time"

// LowestSeenSentinel marks a watermark that has not observed a price since the
// thresholds last changed.
const LowestSeenSentinel int64 = 999999999

// Item is a tracked trading post instrument. Prices are in copper.
type Item struct {
	ID            int64
	Name          string
	IconURL       string
	BuyThreshold  int64
	SellThreshold int64
	LowestSeen    int64
	LastBuyPrice  int64
	LastSellPrice int64
}

// GlobalState is the singleton state row.
type GlobalState struct {
	LastRun    time.Time
	LimitUntil time.Time
	// CustomDir is owned by the config collaborator and only read here.
	CustomDir string
}

// CooldownActive reports whether now is before LimitUntil.
func (g GlobalState) CooldownActive(now time.Time) bool {
	return !g.LimitUntil.IsZero() && now.Before(g.LimitUntil)
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
