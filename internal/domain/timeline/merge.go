package timeline

import (
	"sort"

	"github.com/okian/akut/internal/domain/model"
)

// Merger combines local and remote timelines using a translation table.
// It is safe for concurrent use once built.
type Merger struct {
	actions    map[string]string
	translator *Translator
}

// NewMerger returns a merger with the default table and the given overrides.
func NewMerger(opts ...Option) *Merger {
	m := &Merger{actions: DefaultActionMap()}
	for _, opt := range opts {
		opt(m)
	}
	m.translator = NewTranslator(m.actions)
	return m
}

// Translator exposes the merger's translation table.
func (m *Merger) Translator() *Translator {
	return m.translator
}

// Merge returns local followed by translated remote entries, stably sorted by
// TimeMs. Inputs are not modified and nothing is deduplicated.
func (m *Merger) Merge(local []model.ActionLogEntry, remote []model.SessionEvent) []model.ActionLogEntry {
	out := make([]model.ActionLogEntry, 0, len(local)+len(remote))
	out = append(out, local...)
	for _, ev := range remote {
		out = append(out, m.translator.Translate(ev))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimeMs < out[j].TimeMs
	})
	return out
}

var defaultMerger = NewMerger() //nolint:gochecknoglobals // immutable default table

// Merge merges with the default translation table.
func Merge(local []model.ActionLogEntry, remote []model.SessionEvent) []model.ActionLogEntry {
	return defaultMerger.Merge(local, remote)
}
