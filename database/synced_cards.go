package database

import (
	"context"
	"fmt"

	"github.com/chxlky/trello-citydash/internal/models"
	"gorm.io/gorm"
)

// CardLedger remembers the calendar event written for each card.
type CardLedger struct {
	DB *gorm.DB
}

func (l *CardLedger) ListByBoard(ctx context.Context, boardID string) ([]models.SyncedCard, error) {
	var cards []models.SyncedCard
	if err := l.DB.WithContext(ctx).Where("board_id = ?", boardID).Order("id").Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("listing synced cards: %w", err)
	}
	return cards, nil
}

func (l *CardLedger) Save(ctx context.Context, card models.SyncedCard) error {
	if result := l.DB.WithContext(ctx).Save(&card); result.Error != nil {
		return fmt.Errorf("saving synced card %s: %w", card.ID, result.Error)
	}
	return nil
}

func (l *CardLedger) Delete(ctx context.Context, cardID string) error {
	if result := l.DB.WithContext(ctx).Delete(&models.SyncedCard{}, "id = ?", cardID); result.Error != nil {
		return fmt.Errorf("deleting synced card %s: %w", cardID, result.Error)
	}
	return nil
}
