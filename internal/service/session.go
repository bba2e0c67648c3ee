package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oraclelog/oracle-go/internal/bus"
	"github.com/oraclelog/oracle-go/internal/store"
	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// SessionService owns the farming session lifecycle. A session is
// opened for the observed player, rolled up after every map record,
// and left open across restarts so a crash does not lose a run in
// progress.
type SessionService struct {
	Base
	store *store.Store

	active *store.Session
}

func NewSessionService(b *bus.Bus, st *store.Store, log *slog.Logger) *SessionService {
	return &SessionService{
		Base:  newBase("session", b, log),
		store: st,
	}
}

func (s *SessionService) Manifest() Manifest {
	return Manifest{Name: "session", Version: "1.0.0"}
}

func (s *SessionService) Startup(ctx context.Context) error {
	s.subscribe(ctx, s.handle, withTracked(
		event.SessionControl,
		event.PlayerJoin,
		event.MapRecord,
		event.MarketTransaction,
		event.GameView,
	)...)
	return nil
}

// PostStartup reloads the latest open session, if any, and announces it
// exactly once so downstream services resynchronize their aggregates.
func (s *SessionService) PostStartup(ctx context.Context) error {
	sess, err := s.store.LatestOpenSession(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if sess == nil {
		return nil
	}
	totals, err := s.store.RecomputeSessionTotals(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("restore session totals: %w", err)
	}
	if err := s.store.UpdateSessionTotals(ctx, sess.ID, totals); err != nil {
		return fmt.Errorf("restore session totals: %w", err)
	}
	s.active = sess
	s.publish(event.SessionRestoreData{
		SessionID:       sess.ID,
		Player:          sess.PlayerName,
		StartedAt:       sess.StartedAt,
		TotalMaps:       totals.TotalMaps,
		TotalTime:       totals.TotalTime,
		CurrencyTotal:   totals.CurrencyTotal,
		CurrencyPerHour: totals.CurrencyPerHour,
		CurrencyPerMap:  totals.CurrencyPerMap,
		ExpTotal:        totals.ExpTotal,
		ExpPerHour:      totals.ExpPerHour,
	})
	s.log.Info("restored open session",
		"session_id", sess.ID, "player", sess.PlayerName, "maps", totals.TotalMaps)
	return nil
}

// Shutdown leaves the active session open so it survives restarts.
func (s *SessionService) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	if s.active != nil {
		s.log.Info("leaving session open for restore", "session_id", s.active.ID)
	}
	return nil
}

// Active returns the open session, or nil.
func (s *SessionService) Active() *store.Session { return s.active }

func (s *SessionService) handle(ev event.Event) error {
	s.track(ev)
	switch data := ev.Data.(type) {
	case event.SessionControlData:
		return s.onControl(ev.Timestamp, data)
	case event.PlayerJoinData:
		return s.onPlayerJoin(ev.Timestamp, data)
	case event.MapRecordData:
		return s.refreshTotals()
	case event.MarketTransactionData:
		return s.refreshTotals()
	case event.GameViewData:
		if strings.Contains(data.View, "Login") && s.active != nil {
			s.publish(event.NotificationData{
				Severity: event.SeverityInfo,
				Message: fmt.Sprintf("session %d for %s is still open",
					s.active.ID, s.active.PlayerName),
			})
		}
	}
	return nil
}

func (s *SessionService) onControl(ts time.Time, data event.SessionControlData) error {
	switch data.Action {
	case event.SessionControlStart:
		if s.active != nil {
			s.log.Warn("start requested with open session", "session_id", s.active.ID)
			return nil
		}
		return s.start(ts, s.controlPlayer(data))
	case event.SessionControlClose:
		return s.close(ts)
	case event.SessionControlNext:
		if err := s.close(ts); err != nil {
			return err
		}
		return s.start(ts, s.controlPlayer(data))
	default:
		s.log.Warn("unknown session control action", "action", data.Action)
		return nil
	}
}

func (s *SessionService) controlPlayer(data event.SessionControlData) string {
	if data.PlayerName != "" {
		return data.PlayerName
	}
	return s.PlayerName()
}

// onPlayerJoin announces the observed player. A join by the current
// session's player is a no-op; a different player rolls the session.
func (s *SessionService) onPlayerJoin(ts time.Time, data event.PlayerJoinData) error {
	if s.active != nil && s.active.PlayerName == data.PlayerName {
		return nil
	}
	old := ""
	if s.active != nil {
		old = s.active.PlayerName
		if err := s.close(ts); err != nil {
			return err
		}
	}
	s.publish(event.PlayerChangedData{OldPlayer: old, NewPlayer: data.PlayerName})
	return s.start(ts, data.PlayerName)
}

// refreshTotals recomputes and persists the active session's rollup.
// Runs after every map record and market transaction so the stored
// session row always reflects both.
func (s *SessionService) refreshTotals() error {
	if s.active == nil {
		return nil
	}
	totals, err := s.store.RecomputeSessionTotals(s.ctx, s.active.ID)
	if err != nil {
		return fmt.Errorf("session totals: %w", err)
	}
	if err := s.store.UpdateSessionTotals(s.ctx, s.active.ID, totals); err != nil {
		return fmt.Errorf("session totals: %w", err)
	}
	return nil
}

func (s *SessionService) start(ts time.Time, playerName string) error {
	var playerID *uint
	if playerName != "" {
		player, err := s.store.GetOrCreatePlayer(s.ctx, playerName)
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		playerID = &player.ID
	}
	sess, err := s.store.CreateSession(s.ctx, playerID, playerName, ts)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	s.active = sess
	s.publishAt(ts, event.SessionStartedData{
		SessionID: sess.ID,
		Player:    playerName,
		StartedAt: sess.StartedAt,
	})
	s.log.Info("session started", "session_id", sess.ID, "player", playerName)
	return nil
}

func (s *SessionService) close(ts time.Time) error {
	if s.active == nil {
		return nil
	}
	sess := s.active
	totals, err := s.store.RecomputeSessionTotals(s.ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := s.store.UpdateSessionTotals(s.ctx, sess.ID, totals); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := s.store.CloseSession(s.ctx, sess.ID, ts); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	s.active = nil
	s.publishAt(ts, event.SessionFinishedData{
		SessionID:       sess.ID,
		Player:          sess.PlayerName,
		StartedAt:       sess.StartedAt,
		EndedAt:         ts,
		TotalMaps:       totals.TotalMaps,
		CurrencyTotal:   totals.CurrencyTotal,
		CurrencyPerHour: totals.CurrencyPerHour,
		CurrencyPerMap:  totals.CurrencyPerMap,
	})
	s.log.Info("session closed", "session_id", sess.ID, "maps", totals.TotalMaps)
	return nil
}
