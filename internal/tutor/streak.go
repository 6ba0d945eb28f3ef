package tutor

import (
	"context"
	"time"

	"github.com/yuehan/english-tutor/internal/storage"
)

// dateLayout is the calendar-day granularity used for streak tracking.
const dateLayout = "2006-01-02"

// nextStreak computes the consecutive-day practice streak after practicing
// on day now: unchanged if already practiced today, incremented if the last
// practice was yesterday, reset to 1 after any gap. The returned day is
// always today.
func nextStreak(current int, lastPractice string, now time.Time) (int, string) {
	today := now.Format(dateLayout)
	if lastPractice == today {
		return current, today
	}

	yesterday := now.AddDate(0, 0, -1).Format(dateLayout)
	if lastPractice == yesterday {
		return current + 1, today
	}
	return 1, today
}

// updateStreakLocked advances the daily streak for a practice event at the
// current time and persists it when it changed. Callers must hold p.mu.
func (p *Pipeline) updateStreakLocked(ctx context.Context) {
	streak, today := nextStreak(p.streak, p.lastPractice, p.now())
	if streak == p.streak && today == p.lastPractice {
		return
	}

	p.streak = streak
	p.lastPractice = today
	p.store.SetSafe(ctx, storage.KeyStreak, p.streak)
	p.store.SetSafe(ctx, storage.KeyLastPractice, p.lastPractice)
	p.log.InfoContext(ctx, "Practice streak updated", "streak", p.streak)
}
