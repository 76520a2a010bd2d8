package repositories

import "time"

func (r *CaseRepository) SetNow(now func() time.Time) {
	r.now = now
}
