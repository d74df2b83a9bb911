package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/session_booking/internal/repository"
)

// OverlapValidator не даёт двум слотам одного шаблона пересечься по времени.
// Вызывается внутри транзакции после блокировки строки шаблона.
type OverlapValidator struct{}

// Check возвращает Conflict если в шаблоне есть слот, пересекающий [start, end).
// excludeSlotID исключает сам обновляемый слот, 0 - ничего не исключать.
func (OverlapValidator) Check(ctx context.Context, slots repository.SlotStore, templateID int64, start, end time.Time, excludeSlotID int64) error {
	if !start.Before(end) {
		return ErrInvalidRange
	}

	overlapping, err := slots.FindOverlapping(ctx, templateID, start, end, excludeSlotID)
	if err != nil {
		return fmt.Errorf("find overlapping slots: %w", err)
	}

	if len(overlapping) > 0 {
		first := overlapping[0]
		return newError(KindConflict, "slot overlaps slot %d (%s - %s)",
			first.ID,
			first.StartTime.UTC().Format(time.RFC3339),
			first.EndTime.UTC().Format(time.RFC3339),
		)
	}

	return nil
}
