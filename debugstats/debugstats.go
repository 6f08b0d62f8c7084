// Package debugstats periodically logs runtime and occupancy stats for
// debugging.
package debugstats

import (
	"context"
	"fmt"
	"github.com/lefinal/pug-server/games"
	"github.com/lefinal/pug-server/lobby"
	"github.com/lefinal/pug-server/services"
	"go.uber.org/zap"
	"runtime"
	"time"
)

// Config for the debug stats service.
type Config struct {
	// Interval in which to log debug stats. If not positive, nothing is logged.
	Interval time.Duration
	// WithStack also logs the stack of all goroutines.
	WithStack bool
}

// Source provides the lobby and match occupancy.
type Source interface {
	Status() (lobby.Snapshot, []games.MatchSnapshot)
}

type debugStatsService struct {
	logger *zap.Logger
	config Config
	source Source
}

// NewService creates a new services.Service that logs debug stats.
func NewService(logger *zap.Logger, config Config, source Source) services.Service {
	return &debugStatsService{
		logger: logger,
		config: config,
		source: source,
	}
}

func (s *debugStatsService) Run(ctx context.Context) error {
	if s.config.Interval <= 0 {
		return nil
	}
	s.logger.Debug(fmt.Sprintf("logging system state every %gs", s.config.Interval.Seconds()))
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.logger.Debug("debug system stats", s.fields()...)
		}
	}
}

// fields gathers the current stats.
func (s *debugStatsService) fields() []zap.Field {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	lobbySnapshot, matchSnapshots := s.source.Status()
	busy := 0
	for _, m := range matchSnapshots {
		if m.Status != games.StatusFree {
			busy++
		}
	}
	fields := []zap.Field{
		zap.Int("num_cpu", runtime.NumCPU()),
		zap.Int("num_goroutine", runtime.NumGoroutine()),
		zap.Uint64("memory_mb", memStats.Sys/1000/1000),
		zap.Int("lobby_players", len(lobbySnapshot.Players)),
		zap.Bool("lobby_stuck", lobbySnapshot.Stuck),
		zap.Int("busy_slots", busy),
		zap.Int("slots", len(matchSnapshots)),
	}
	if s.config.WithStack {
		buf := make([]byte, 1<<16)
		stackSize := runtime.Stack(buf, true)
		fields = append(fields, zap.String("stack", string(buf[:stackSize])))
	}
	return fields
}
