package store

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Outcome is the result of a Channel Set or Record Set mutation.
type Outcome string

const (
	OutcomeAdded          Outcome = "added"
	OutcomeRemoved        Outcome = "removed"
	OutcomeRenamed        Outcome = "renamed"
	OutcomeUpdated        Outcome = "updated"
	OutcomeAlreadyPresent Outcome = "already_present"
	OutcomeNotFound       Outcome = "not_found"
	OutcomeInvalid        Outcome = "invalid"
	OutcomeFailed         Outcome = "failed"
)

var (
	linkPrefixes = []string{"https://t.me/", "http://t.me/", "t.me/"}
	numericID    = regexp.MustCompile(`^-?\d+$`)
)

// NormalizeIdentifier returns the comparison form of a channel identifier:
// whitespace trimmed, t.me link prefix and leading "@" removed, lowercased.
func NormalizeIdentifier(id string) string {
	id = strings.TrimSpace(id)
	for _, p := range linkPrefixes {
		if len(id) >= len(p) && strings.EqualFold(id[:len(p)], p) {
			id = id[len(p):]
			break
		}
	}
	id = strings.TrimSuffix(id, "/")
	id = strings.TrimPrefix(id, "@")
	return strings.ToLower(strings.TrimSpace(id))
}

// CanonicalIdentifier returns the stored form of an identifier: numeric ids
// unchanged, handles as "@name" with the case the user typed. It returns ""
// for an identifier that is empty after normalization.
func CanonicalIdentifier(id string) string {
	if NormalizeIdentifier(id) == "" {
		return ""
	}
	id = strings.TrimSpace(id)
	for _, p := range linkPrefixes {
		if len(id) >= len(p) && strings.EqualFold(id[:len(p)], p) {
			id = id[len(p):]
			break
		}
	}
	id = strings.TrimPrefix(strings.TrimSuffix(id, "/"), "@")
	if numericID.MatchString(id) {
		return id
	}
	return "@" + id
}

// IsNumericIdentifier reports whether id is a raw chat id.
func IsNumericIdentifier(id string) bool {
	return numericID.MatchString(strings.TrimSpace(id))
}

// channelList accepts both strings and bare numbers in the stored document.
type channelList []string

func (l *channelList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n int64
		if err := json.Unmarshal(item, &n); err != nil {
			return fmt.Errorf("channel entry %s is neither string nor integer", string(item))
		}
		out = append(out, strconv.FormatInt(n, 10))
	}
	*l = out
	return nil
}

// Channels returns the Channel Set in insertion order with empty and
// duplicate (normalized) entries removed.
func (s *Store) Channels(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels(ctx)
}

func (s *Store) channels(ctx context.Context) []string {
	list := Load(ctx, s, KeyChannels, channelList{})
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, id := range list {
		n := NormalizeIdentifier(id)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, strings.TrimSpace(id))
	}
	return out
}

func indexOfChannel(list []string, id string) int {
	n := NormalizeIdentifier(id)
	for i, existing := range list {
		if NormalizeIdentifier(existing) == n {
			return i
		}
	}
	return -1
}

// AddChannel appends id unless an equal normalized entry exists. It returns
// the stored identifier along with the outcome.
func (s *Store) AddChannel(ctx context.Context, id string) (string, Outcome) {
	canonical := CanonicalIdentifier(id)
	if canonical == "" {
		return "", OutcomeInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.channels(ctx)
	if i := indexOfChannel(list, canonical); i >= 0 {
		return list[i], OutcomeAlreadyPresent
	}
	list = append(list, canonical)
	if !Save(ctx, s, KeyChannels, list) {
		return canonical, OutcomeFailed
	}
	return canonical, OutcomeAdded
}

// RemoveChannel deletes the entry matching id.
func (s *Store) RemoveChannel(ctx context.Context, id string) (string, Outcome) {
	if NormalizeIdentifier(id) == "" {
		return "", OutcomeInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.channels(ctx)
	i := indexOfChannel(list, id)
	if i < 0 {
		return CanonicalIdentifier(id), OutcomeNotFound
	}
	removed := list[i]
	list = append(list[:i], list[i+1:]...)
	if !Save(ctx, s, KeyChannels, list) {
		return removed, OutcomeFailed
	}
	return removed, OutcomeRemoved
}

// RenameChannel replaces oldID with newID in place.
func (s *Store) RenameChannel(ctx context.Context, oldID, newID string) (string, Outcome) {
	canonical := CanonicalIdentifier(newID)
	if canonical == "" || NormalizeIdentifier(oldID) == "" {
		return "", OutcomeInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.channels(ctx)
	i := indexOfChannel(list, oldID)
	if i < 0 {
		return CanonicalIdentifier(oldID), OutcomeNotFound
	}
	if j := indexOfChannel(list, canonical); j >= 0 && j != i {
		return list[j], OutcomeAlreadyPresent
	}
	list[i] = canonical
	if !Save(ctx, s, KeyChannels, list) {
		return canonical, OutcomeFailed
	}
	return canonical, OutcomeRenamed
}
