package app

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/lefinal/pug-server/accounts"
	"github.com/lefinal/pug-server/cues"
	"github.com/lefinal/pug-server/debugstats"
	"github.com/lefinal/pug-server/errors"
	"github.com/lefinal/pug-server/games"
	"github.com/lefinal/pug-server/lobby"
	"github.com/lefinal/pug-server/lobbysvc"
	"github.com/lefinal/pug-server/logging"
	"github.com/lefinal/pug-server/logpublishsvc"
	"github.com/lefinal/pug-server/notify"
	"github.com/lefinal/pug-server/portal"
	"github.com/lefinal/pug-server/services"
	"github.com/lefinal/pug-server/statussvc"
	"github.com/lefinal/pug-server/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"time"
)

type appServices map[string]services.Service

// matchConfig creates the games.MatchConfig from the given MatchConfig.
func matchConfig(config MatchConfig) (games.MatchConfig, error) {
	factions, err := games.NewFactions(config.Factions)
	if err != nil {
		return games.MatchConfig{}, errors.Wrap(err, "new factions", nil)
	}
	countdown := config.Countdown
	if len(countdown) == 0 {
		countdown = games.DefaultCountdown()
	}
	return games.MatchConfig{
		RoundLength:    config.RoundLength,
		Factions:       factions,
		Maps:           config.Maps,
		Countdown:      countdown,
		PickCueDelay:   config.PickCueDelay,
		MapCueDelay:    config.MapCueDelay,
		ReadyCueDelay:  config.ReadyCueDelay,
		SwapCueDelay:   config.SwapCueDelay,
		AccountTimeout: config.AccountTimeout,
	}, nil
}

// clipDurations converts the configured clip durations.
func clipDurations(durations map[string]time.Duration) map[cues.Clip]time.Duration {
	converted := make(map[cues.Clip]time.Duration, len(durations))
	for clip, d := range durations {
		converted[cues.Clip(clip)] = d
	}
	return converted
}

// createServices sets up the lobby and all match slots and returns the
// services to run.
func createServices(lifetime context.Context, appConfig Config, logger *zap.Logger, portalBase portal.Base,
	mall *store.Mall, accountPool *accounts.Pool, logEntriesIn <-chan logging.LogEntry) (appServices, error) {
	s := make(appServices)
	// Presentation.
	notifier := notify.NewPortalNotifier(logger.Named("notify"), portalBase.NewPortal("notify"))
	s["notify"] = notifier
	dispatcher := cues.NewPortalDispatcher(logger.Named("cues"), portalBase.NewPortal("cues"),
		clipDurations(appConfig.Match.ClipDurations))
	s["cues"] = dispatcher
	// Match slots.
	gamesConfig, err := matchConfig(appConfig.Match)
	if err != nil {
		return nil, errors.Wrap(err, "match config", nil)
	}
	latestNumber, err := mall.LatestMatchNumber(lifetime)
	if err != nil {
		return nil, errors.Wrap(err, "latest match number", nil)
	}
	logger.Debug("loaded latest match number", zap.Int("latest_number", latestNumber))
	registry, err := games.NewRegistry(lifetime, logger.Named("games"), appConfig.Match.Slots, gamesConfig, games.Deps{
		Notifier: notifier,
		Cues:     dispatcher,
		Recorder: mall,
		NewAllocator: func(sessionID uuid.UUID) games.AccountAllocator {
			return accountPool.NewAllocator(sessionID)
		},
	}, latestNumber)
	if err != nil {
		return nil, errors.Wrap(err, "new registry", nil)
	}
	// Lobby.
	coordinator := lobby.NewCoordinator(lifetime, logger.Named("lobby"), appConfig.Lobby, registry, notifier, dispatcher)
	s["lobby"] = lobbysvc.NewLobbyService(logger.Named("lobby-service"), portalBase.NewPortal("lobby"), coordinator)
	s["status"] = statussvc.NewStatusService(logger.Named("status"), portalBase.NewPortal("status"), coordinator,
		appConfig.StatusInterval)
	s["debug-stats"] = debugstats.NewService(logger.Named("debug-stats"), debugstats.Config{
		Interval: appConfig.Log.SystemDebugStatsInterval,
	}, coordinator)
	// Log publishing service.
	s["log-publish"] = logpublishsvc.New(logger.Named("log-publish"), portalBase.NewPortal("log-publish"), logEntriesIn)
	return s, nil
}

func (s appServices) run(ctx context.Context, logger *zap.Logger) error {
	wg, lifetime := errgroup.WithContext(ctx)
	for name, serviceToRun := range s {
		wg.Go(func() error {
			logger.Debug(fmt.Sprintf("service %s up", name))
			defer logger.Debug(fmt.Sprintf("service %s down", name))
			if err := serviceToRun.Run(lifetime); err != nil {
				return errors.Wrap(err, "run service", errors.Details{"service_name": name})
			}
			return nil
		})
	}
	return wg.Wait()
}
