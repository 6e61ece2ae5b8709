package subscriptions

import "time"

// Advance returns baseDate + amount units.
func Advance(base time.Time, unit Unit, amount int) time.Time {
	if unit == UnitMonths {
		return base.AddDate(0, amount, 0)
	}
	return base.AddDate(0, 0, amount)
}

// Extend computes the next window. In add mode time is appended to an
// unexpired window so remaining paid days are kept; an expired window, set
// mode, or no window at all starts from now.
func Extend(cur *Subscription, in ExtendInput, now time.Time) Subscription {
	if cur == nil {
		return Subscription{
			StartDate:  now,
			ExpiryDate: Advance(now, in.Unit, in.Amount),
			Status:     StatusActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	base := now
	if in.Mode == ModeAdd && cur.ExpiryDate.After(now) {
		base = cur.ExpiryDate
	}
	next := *cur
	next.ExpiryDate = Advance(base, in.Unit, in.Amount)
	next.Status = StatusActive
	next.UpdatedAt = now
	return next
}
