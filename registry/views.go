package registry

import "sort"

// Filter selects which rows a filtered view returns.
type Filter string

const (
	FilterAll        Filter = "all"
	FilterCompleted  Filter = "completed"
	FilterInProgress Filter = "in_progress"
)

// Get returns a copy of one row.
func (r *Registry) Get(id string) (Download, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return Download{}, false
	}
	return row.clone(), true
}

// Len returns the number of rows in the table.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

// Snapshot returns every row in insertion order.
func (r *Registry) Snapshot() []Download {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Download, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.rows[id].clone())
	}
	return out
}

// Active returns the downloads currently moving or paused.
func (r *Registry) Active() []Download {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Download
	for _, id := range r.order {
		row := r.rows[id]
		if row.Status == StatusDownloading || row.Status == StatusPaused {
			out = append(out, row.clone())
		}
	}
	return out
}

// Overview returns all rows in presentation order: active-class rows
// before terminal ones, higher progress first within each class, and
// insertion order breaking ties. The sort is stable, so two rows with
// equal keys keep their relative insertion order.
func (r *Registry) Overview() []Download {
	rows := r.Snapshot()
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Status.Active() != b.Status.Active() {
			return a.Status.Active()
		}
		return a.Progress > b.Progress
	})
	return rows
}

// Filtered returns the overview restricted to the given filter:
// completed rows only, in-progress (downloading or paused) only, or
// everything.
func (r *Registry) Filtered(f Filter) []Download {
	rows := r.Overview()
	if f == FilterAll || f == "" {
		return rows
	}
	out := make([]Download, 0, len(rows))
	for _, d := range rows {
		switch f {
		case FilterCompleted:
			if d.Status == StatusCompleted {
				out = append(out, d)
			}
		case FilterInProgress:
			if d.Status == StatusDownloading || d.Status == StatusPaused {
				out = append(out, d)
			}
		}
	}
	return out
}
