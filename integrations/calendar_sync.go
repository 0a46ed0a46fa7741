package integrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/chxlky/trello-citydash/internal/dashboard"
	"github.com/chxlky/trello-citydash/internal/models"
	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
)

type EventWriter interface {
	UpsertEvent(ctx context.Context, ev CalendarEvent) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

type SyncLedger interface {
	ListByBoard(ctx context.Context, boardID string) ([]models.SyncedCard, error)
	Save(ctx context.Context, card models.SyncedCard) error
	Delete(ctx context.Context, cardID string) error
}

// CalendarSync mirrors the due dates of a snapshot into a calendar. Events
// are only written when the card changed since the last run.
type CalendarSync struct {
	Calendar EventWriter
	Ledger   SyncLedger
	Logger   *zap.Logger
}

type SyncResult struct {
	Upserted  int
	Unchanged int
	Deleted   int
	Failed    int
}

func (s *CalendarSync) Sync(ctx context.Context, snap *dashboard.Snapshot) (SyncResult, error) {
	var res SyncResult
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	known, err := s.Ledger.ListByBoard(ctx, snap.BoardID)
	if err != nil {
		return res, err
	}
	previous := make(map[string]models.SyncedCard, len(known))
	for _, card := range known {
		previous[card.ID] = card
	}

	var errs []error
	seen := make(map[string]bool)
	for _, city := range snap.Cities {
		for _, d := range city.Designs {
			if d.Due == nil {
				continue
			}
			seen[d.ID] = true
			want := models.SyncedCard{
				ID:      d.ID,
				BoardID: snap.BoardID,
				Name:    d.Name,
				City:    d.City,
				DueDate: d.Due,
				URL:     d.URL,
			}
			if prev, ok := previous[d.ID]; ok && unchanged(prev, want) {
				res.Unchanged++
				continue
			}

			event, err := s.Calendar.UpsertEvent(ctx, CalendarEvent{
				CardID: d.ID,
				Name:   d.Name,
				City:   d.City,
				URL:    d.URL,
				Due:    *d.Due,
			})
			if err != nil {
				res.Failed++
				errs = append(errs, fmt.Errorf("card %s: %w", d.ID, err))
				logger.Error("Error syncing calendar event", zap.String("cardID", d.ID), zap.Error(err))
				continue
			}
			want.EventID = event.Id
			if err := s.Ledger.Save(ctx, want); err != nil {
				errs = append(errs, err)
				continue
			}
			res.Upserted++
		}
	}

	for id, card := range previous {
		if seen[id] {
			continue
		}
		if err := s.Calendar.DeleteEvent(ctx, card.EventID); err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("card %s: %w", id, err))
			continue
		}
		if err := s.Ledger.Delete(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Deleted++
	}

	logger.Info("Calendar sync finished",
		zap.String("boardID", snap.BoardID),
		zap.Int("upserted", res.Upserted),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("deleted", res.Deleted),
		zap.Int("failed", res.Failed),
	)
	return res, errors.Join(errs...)
}

func unchanged(prev, want models.SyncedCard) bool {
	if prev.Name != want.Name || prev.City != want.City || prev.URL != want.URL {
		return false
	}
	if prev.DueDate == nil || want.DueDate == nil {
		return prev.DueDate == want.DueDate
	}
	return prev.DueDate.Equal(*want.DueDate)
}
