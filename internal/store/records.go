package store

import (
	"context"
	"sort"
)

// Record is the latest (or, with PolicyAppend, one historical) weight of a
// user for a movement.
type Record struct {
	User     string  `json:"user"     validate:"required"`
	Movement string  `json:"movement" validate:"required"`
	Weight   float64 `json:"weight"   validate:"gte=0"`
	Date     string  `json:"date"`
}

// UserTotal is one /top line.
type UserTotal struct {
	User  string
	Total float64
}

// Records returns every valid record.
func (s *Store) Records(ctx context.Context) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records(ctx)
}

func (s *Store) records(ctx context.Context) []Record {
	return filterValid(s, KeyRecords, Load(ctx, s, KeyRecords, []Record{}))
}

// PutRecord stores a weight for (user, movement) dated today and reports
// whether it beats every other user's weight for that movement.
func (s *Store) PutRecord(ctx context.Context, user, movement string, weight float64) (Record, bool, Outcome) {
	rec := Record{User: user, Movement: movement, Weight: weight, Date: s.now().Format(s.opts.DateFormat)}
	if err := s.validate.Struct(rec); err != nil {
		return rec, false, OutcomeInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.records(ctx)
	if s.opts.Policy == PolicyReplace {
		kept := records[:0]
		for _, r := range records {
			if r.User == user && r.Movement == movement {
				continue
			}
			kept = append(kept, r)
		}
		records = kept
	}

	var best float64
	for _, r := range records {
		if r.Movement == movement && r.User != user && r.Weight > best {
			best = r.Weight
		}
	}

	records = append(records, rec)
	if !Save(ctx, s, KeyRecords, records) {
		return rec, false, OutcomeFailed
	}
	return rec, weight > best, OutcomeAdded
}

// AddRecord appends rec as given, as the dashboard does.
func (s *Store) AddRecord(ctx context.Context, rec Record) Outcome {
	if err := s.validate.Struct(rec); err != nil {
		return OutcomeInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := append(s.records(ctx), rec)
	if !Save(ctx, s, KeyRecords, records) {
		return OutcomeFailed
	}
	return OutcomeAdded
}

// UpdateRecord replaces the record at index.
func (s *Store) UpdateRecord(ctx context.Context, index int, rec Record) Outcome {
	if err := s.validate.Struct(rec); err != nil {
		return OutcomeInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.records(ctx)
	if index < 0 || index >= len(records) {
		return OutcomeNotFound
	}
	records[index] = rec
	if !Save(ctx, s, KeyRecords, records) {
		return OutcomeFailed
	}
	return OutcomeUpdated
}

// DeleteRecord removes the record at index.
func (s *Store) DeleteRecord(ctx context.Context, index int) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.records(ctx)
	if index < 0 || index >= len(records) {
		return OutcomeNotFound
	}
	records = append(records[:index], records[index+1:]...)
	if !Save(ctx, s, KeyRecords, records) {
		return OutcomeFailed
	}
	return OutcomeRemoved
}

// TopTotals sums weights per user and returns the n largest totals.
func (s *Store) TopTotals(ctx context.Context, n int) []UserTotal {
	return TopTotals(s.Records(ctx), n)
}

// TopTotals sums weights per user, largest first, ties in first-seen order.
func TopTotals(records []Record, n int) []UserTotal {
	totals := make(map[string]float64)
	var order []string
	for _, r := range records {
		if _, ok := totals[r.User]; !ok {
			order = append(order, r.User)
		}
		totals[r.User] += r.Weight
	}

	out := make([]UserTotal, 0, len(order))
	for _, u := range order {
		out = append(out, UserTotal{User: u, Total: totals[u]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
