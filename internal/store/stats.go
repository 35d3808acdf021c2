package store

import (
	"context"
	"sort"
)

// StatDateFormat is the layout of StatEntry.Date.
const StatDateFormat = "2006-01-02"

// StatEntry is one successful forward.
type StatEntry struct {
	Date    string `json:"date"    validate:"required"`
	Channel string `json:"channel" validate:"required"`
}

// ChannelStat aggregates forwards of one channel.
type ChannelStat struct {
	Channel string         `json:"channel"`
	Total   int            `json:"total"`
	ByDate  map[string]int `json:"by_date"`
}

// AppendStat records a forward from channel dated today.
func (s *Store) AppendStat(ctx context.Context, channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats(ctx)
	stats = append(stats, StatEntry{Date: s.now().Format(StatDateFormat), Channel: channel})
	return Save(ctx, s, KeyStats, stats)
}

// Stats returns every valid stat entry.
func (s *Store) Stats(ctx context.Context) []StatEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats(ctx)
}

func (s *Store) stats(ctx context.Context) []StatEntry {
	return filterValid(s, KeyStats, Load(ctx, s, KeyStats, []StatEntry{}))
}

// AggregateStats groups stats by channel, busiest channel first.
func (s *Store) AggregateStats(ctx context.Context) []ChannelStat {
	byChannel := make(map[string]*ChannelStat)
	var order []string
	for _, e := range s.Stats(ctx) {
		cs, ok := byChannel[e.Channel]
		if !ok {
			cs = &ChannelStat{Channel: e.Channel, ByDate: make(map[string]int)}
			byChannel[e.Channel] = cs
			order = append(order, e.Channel)
		}
		cs.Total++
		cs.ByDate[e.Date]++
	}

	out := make([]ChannelStat, 0, len(order))
	for _, ch := range order {
		out = append(out, *byChannel[ch])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}
