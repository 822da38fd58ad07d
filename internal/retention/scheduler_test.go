package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/teamup-app/chat-service/internal/config"
	"github.com/teamup-app/chat-service/internal/database"
	"github.com/teamup-app/chat-service/internal/stats"
	"github.com/teamup-app/chat-service/internal/testutil"
)

func newTestScheduler(t *testing.T, db database.ChatRepository, sp stats.StatsProvider) *Scheduler {
	t.Helper()

	cfg := &config.Config{
		RetentionMaxAgeDays:          30,
		InactiveRoomSafetyBufferDays: 1,
	}

	return NewScheduler(testutil.TestLogger(t), db, cfg, sp)
}

func TestRunAgePurge(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)

	s := newTestScheduler(t, db, &stats.MockStatsUpdater{})

	var cutoff time.Time
	db.On("PurgeMessagesBefore", mock.Anything, mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) {
			cutoff = args.Get(1).(time.Time)
		}).
		Return(int64(7), nil)

	count, err := s.RunAgePurge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)

	want := time.Now().UTC().Add(-30 * 24 * time.Hour)
	assert.WithinDuration(t, want, cutoff, time.Minute, "expected the cutoff to sit at the retention age")
}

func TestRunInactiveRoomPurge(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)

	s := newTestScheduler(t, db, &stats.MockStatsUpdater{})

	var cutoff time.Time
	db.On("PurgeInactiveRoomMessages", mock.Anything, mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) {
			cutoff = args.Get(1).(time.Time)
		}).
		Return(int64(3), nil)

	count, err := s.RunInactiveRoomPurge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	want := time.Now().UTC().Add(-24 * time.Hour)
	assert.WithinDuration(t, want, cutoff, time.Minute, "expected the cutoff to sit at the safety buffer")
}

func Test_runOnce(t *testing.T) {
	t.Run("records the purge count", func(t *testing.T) {
		sp := &stats.MockStatsUpdater{}
		s := newTestScheduler(t, &database.MockChatRepository{}, sp)

		s.runOnce("test purge", func(ctx context.Context) (int64, error) {
			require.NotNil(t, ctx)
			_, ok := ctx.Deadline()
			assert.True(t, ok, "expected a bounded deadline on the run context")
			return 5, nil
		})

		assert.Equal(t, int64(5), sp.Count(stats.PurgedMessages))
	})

	t.Run("a failed run moves no counters", func(t *testing.T) {
		sp := &stats.MockStatsUpdater{}
		s := newTestScheduler(t, &database.MockChatRepository{}, sp)

		s.runOnce("test purge", func(ctx context.Context) (int64, error) {
			return 0, errors.New("connection refused")
		})

		assert.Equal(t, int64(0), sp.Count(stats.PurgedMessages))
	})

	t.Run("a panicking run is contained", func(t *testing.T) {
		s := newTestScheduler(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})

		assert.NotPanics(t, func() {
			s.runOnce("test purge", func(ctx context.Context) (int64, error) {
				panic("boom")
			})
		})
	})
}

func TestStartStop(t *testing.T) {
	db := &database.MockChatRepository{}
	s := newTestScheduler(t, db, &stats.MockStatsUpdater{})

	// the age purge runs with no offset, so it fires once on startup
	db.On("PurgeMessagesBefore", mock.Anything, mock.AnythingOfType("time.Time")).
		Return(int64(0), nil).Maybe()

	s.Start()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the scheduler to stop")
	}

	// Stop is idempotent
	s.Stop()
}
