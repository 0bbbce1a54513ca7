package logger

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type componentStat struct {
	warns  int64
	errors int64
}

var components sync.Map // map[string]*componentStat

func statFor(component string) *componentStat {
	v, _ := components.LoadOrStore(component, &componentStat{})
	return v.(*componentStat)
}

func recordWarn(component string) {
	atomic.AddInt64(&statFor(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&statFor(component).errors, 1)
}

// ComponentCounts returns the warn and error counts recorded for a component.
func ComponentCounts(component string) (warns, errors int64) {
	v, ok := components.Load(component)
	if !ok {
		return 0, 0
	}
	cs := v.(*componentStat)
	return atomic.LoadInt64(&cs.warns), atomic.LoadInt64(&cs.errors)
}

// ResetCounts clears every recorded warn/error counter.
func ResetCounts() {
	components.Range(func(k, _ any) bool {
		components.Delete(k)
		return true
	})
}

// LogRunReport emits a single summary entry with the elapsed runtime and the
// warn/error counts accumulated per component.
func LogRunReport(entry *Entry, elapsed time.Duration) {
	perComponent := map[string]map[string]int64{}
	names := []string{}
	components.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*componentStat)
		perComponent[name] = map[string]int64{
			"warns":  atomic.LoadInt64(&cs.warns),
			"errors": atomic.LoadInt64(&cs.errors),
		}
		names = append(names, name)
		return true
	})
	sort.Strings(names)

	entry.WithComponent("report").WithFields(Fields{
		"runtime_seconds": roundTo(elapsed.Seconds(), 2),
		"runtime_minutes": roundTo(elapsed.Minutes(), 2),
		"goroutines":      runtime.NumGoroutine(),
		"components":      perComponent,
		"component_names": names,
	}).Info("runtime report")
}

func roundTo(v float64, places int) float64 {
	p := 1.0
	for i := 0; i < places; i++ {
		p *= 10
	}
	if v < 0 {
		return float64(int64(v*p-0.5)) / p
	}
	return float64(int64(v*p+0.5)) / p
}
