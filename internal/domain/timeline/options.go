package timeline

// Option configures a Merger.
type Option func(*Merger)

// WithActionMap overrides or extends the default event translation table.
// An empty target removes the entry so the type passes through.
func WithActionMap(overrides map[string]string) Option {
	return func(m *Merger) {
		for k, v := range overrides {
			if v == "" {
				delete(m.actions, k)
				continue
			}
			m.actions[k] = v
		}
	}
}
