package retention

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/teamup-app/chat-service/internal/config"
	"github.com/teamup-app/chat-service/internal/database"
	"github.com/teamup-app/chat-service/internal/stats"
)

const (
	purgeInterval = 24 * time.Hour
	runTimeout    = 5 * time.Minute
)

// Scheduler owns the two daily purge jobs: one removes messages past the
// retention age, the other removes messages left behind by rooms marked
// inactive. The schedules run offset from each other so they never touch
// the messages table at the same time. A failed run is logged and the next
// one proceeds; nothing here ever reaches request-serving code.
type Scheduler struct {
	log          *log.Logger
	db           database.ChatRepository
	stats        stats.StatsProvider
	maxAge       time.Duration
	safetyBuffer time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewScheduler(logger *log.Logger, db database.ChatRepository, cfg *config.Config, sp stats.StatsProvider) *Scheduler {
	return &Scheduler{
		log:          logger,
		db:           db,
		stats:        sp,
		maxAge:       time.Duration(cfg.RetentionMaxAgeDays) * 24 * time.Hour,
		safetyBuffer: time.Duration(cfg.InactiveRoomSafetyBufferDays) * 24 * time.Hour,
		stop:         make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.loop(0, "age purge", s.RunAgePurge)
	go s.loop(purgeInterval/2, "inactive room purge", s.RunInactiveRoomPurge)
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}

func (s *Scheduler) loop(offset time.Duration, name string, run func(context.Context) (int64, error)) {
	defer s.wg.Done()

	select {
	case <-time.After(offset):
	case <-s.stop:
		return
	}

	s.runOnce(name, run)

	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(name, run)
		case <-s.stop:
			return
		}
	}
}

// runOnce executes a single purge under a bounded deadline. Errors and
// panics stop at this boundary.
func (s *Scheduler) runOnce(name string, run func(context.Context) (int64, error)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Printf("%s: panic: %v", name, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	count, err := run(ctx)
	if err != nil {
		s.log.Printf("%s: %v", name, err)
		return
	}

	s.log.Printf("%s removed %d messages", name, count)
	s.stats.Add(stats.PurgedMessages, count)
}

// RunAgePurge hard-deletes every message older than the retention age,
// soft-deleted ones included.
func (s *Scheduler) RunAgePurge(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.maxAge)
	return s.db.PurgeMessagesBefore(ctx, cutoff)
}

// RunInactiveRoomPurge hard-deletes messages of inactive rooms once they
// are older than the safety buffer, so a room marked inactive moments ago
// does not lose its history immediately.
func (s *Scheduler) RunInactiveRoomPurge(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.safetyBuffer)
	return s.db.PurgeInactiveRoomMessages(ctx, cutoff)
}
