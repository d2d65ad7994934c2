package tradesummary

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ColomboLocation is the exchange's time zone (UTC+05:30, no DST).
var ColomboLocation = time.FixedZone("Asia/Colombo", 5*3600+30*60)

// DailyCache keeps one snapshot per trading day in front of another
// Provider. Failed fetches are not cached.
type DailyCache struct {
	next   Provider
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger

	mu   sync.RWMutex
	day  string
	snap *Snapshot
}

func NewDailyCache(next Provider, logger *zap.Logger) *DailyCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyCache{
		next:   next,
		loc:    ColomboLocation,
		now:    time.Now,
		logger: logger,
	}
}

func (c *DailyCache) tradingDay() string {
	return c.now().In(c.loc).Format(time.DateOnly)
}

func (c *DailyCache) Fetch(ctx context.Context) (*Snapshot, error) {
	day := c.tradingDay()

	c.mu.RLock()
	if c.snap != nil && c.day == day {
		snap := c.snap
		c.mu.RUnlock()
		c.logger.Debug("trade summary cache hit", zap.String("day", day))
		return snap, nil
	}
	c.mu.RUnlock()

	snap, err := c.next.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.day = day
	c.snap = snap
	c.mu.Unlock()
	c.logger.Info("trade summary cached", zap.String("day", day), zap.Int("rows", snap.Len()))
	return snap, nil
}

// Invalidate drops the cached snapshot.
func (c *DailyCache) Invalidate() {
	c.mu.Lock()
	c.day = ""
	c.snap = nil
	c.mu.Unlock()
}
