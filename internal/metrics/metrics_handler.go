package metrics

import (
	"sort"
	"sync"
	"time"

	"cryptorank/logger"
)

// Metric is a structured metric event. RunID is taken from the "run_id"
// field when the emitter sets one.
type Metric struct {
	Timestamp time.Time
	RunID     string
	Component string
	Name      string
	Value     interface{}
	Type      string
	Fields    logger.Fields
}

// Tally sums the numeric metrics emitted while a run is open.
type Tally struct {
	runID string

	mu     sync.Mutex
	totals map[string]float64
	counts map[string]int
	closed bool
}

// Summary is what a Tally held when it was closed.
type Summary struct {
	RunID  string
	Totals map[string]float64
	Counts map[string]int
}

var (
	talliesMu sync.RWMutex
	tallies   = make(map[string]*Tally)
)

// OpenTally starts collecting metrics for runID. Opening an id that is
// already open returns the existing tally.
func OpenTally(runID string) *Tally {
	talliesMu.Lock()
	defer talliesMu.Unlock()

	if t, ok := tallies[runID]; ok {
		return t
	}
	t := &Tally{
		runID:  runID,
		totals: make(map[string]float64),
		counts: make(map[string]int),
	}
	tallies[runID] = t
	return t
}

// Close stops collecting and returns the final sums. Closing twice returns
// the same summary.
func (t *Tally) Close() Summary {
	talliesMu.Lock()
	if tallies[t.runID] == t {
		delete(tallies, t.runID)
	}
	talliesMu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true

	s := Summary{
		RunID:  t.runID,
		Totals: make(map[string]float64, len(t.totals)),
		Counts: make(map[string]int, len(t.counts)),
	}
	for k, v := range t.totals {
		s.Totals[k] = v
	}
	for k, v := range t.counts {
		s.Counts[k] = v
	}
	return s
}

// Total returns the summed value of name so far.
func (t *Tally) Total(name string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals[name]
}

// Count returns how many events named name were seen so far.
func (t *Tally) Count(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[name]
}

func (t *Tally) observe(m Metric) {
	v, ok := toFloat64(m.Value)
	if !ok {
		return
	}
	t.mu.Lock()
	if !t.closed {
		t.totals[m.Name] += v
		t.counts[m.Name]++
	}
	t.mu.Unlock()
}

// Names returns every metric in the summary, sorted.
func (s Summary) Names() []string {
	names := make([]string, 0, len(s.Totals))
	for name := range s.Totals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields renders the totals for a log entry.
func (s Summary) Fields() logger.Fields {
	out := make(logger.Fields, len(s.Totals))
	for name, v := range s.Totals {
		out[name] = v
	}
	return out
}

func recordMetric(log *logger.Log, component, name string, value interface{}, metricType string, fields logger.Fields) (Metric, bool) {
	if name == "" {
		return Metric{}, false
	}
	if metricType == "" {
		metricType = "counter"
	}
	if log == nil {
		log = logger.GetLogger()
	}

	userFields := cloneFields(fields)
	log.WithComponent(component).LogMetric(component, name, value, metricType, userFields)

	runID, _ := userFields["run_id"].(string)
	metric := Metric{
		Timestamp: timeNow(),
		RunID:     runID,
		Component: component,
		Name:      name,
		Value:     value,
		Type:      metricType,
		Fields:    userFields,
	}
	dispatchMetric(metric)
	return metric, true
}

// dispatchMetric hands a tagged metric to its own run only; untagged metrics
// come from shared stages and reach every open run.
func dispatchMetric(metric Metric) {
	talliesMu.RLock()
	var targets []*Tally
	if metric.RunID != "" {
		if t, ok := tallies[metric.RunID]; ok {
			targets = append(targets, t)
		}
	} else {
		targets = make([]*Tally, 0, len(tallies))
		for _, t := range tallies {
			targets = append(targets, t)
		}
	}
	talliesMu.RUnlock()

	for _, t := range targets {
		t.observe(metric)
	}
}

func cloneFields(fields logger.Fields) logger.Fields {
	copied := make(logger.Fields, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return copied
}
