package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// wrapperPackages are skipped when resolving the caller. Metric lines are
// logged from internal/metrics on behalf of a stage, so the stage is reported.
var wrapperPackages = []string{
	"sirupsen/logrus",
	"cryptorank/logger.",
	"cryptorank/internal/metrics.",
}

// callerHook points the reported caller at the first frame outside the
// logging and metrics wrappers.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(6, pcs)
	if frame, ok := firstForeignFrame(runtime.CallersFrames(pcs[:n])); ok {
		entry.Caller = &frame
	}
	return nil
}

type frameIterator interface {
	Next() (runtime.Frame, bool)
}

func firstForeignFrame(frames frameIterator) (runtime.Frame, bool) {
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !isWrapper(frame.Function) {
			return frame, true
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}

func isWrapper(fn string) bool {
	for _, pkg := range wrapperPackages {
		if strings.Contains(fn, pkg) {
			return true
		}
	}
	return false
}
