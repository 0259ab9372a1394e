package metrics

import "sync/atomic"

var (
	jobsSucceeded   int64
	jobsFailed      int64
	tipsServed      int64
	fallbackServed  int64
	reportsRecorded int64
	alertsSent      int64
)

func IncSucceeded()       { atomic.AddInt64(&jobsSucceeded, 1) }
func IncFailed()          { atomic.AddInt64(&jobsFailed, 1) }
func IncReportsRecorded() { atomic.AddInt64(&reportsRecorded, 1) }
func IncAlertsSent()      { atomic.AddInt64(&alertsSent, 1) }

// ObserveAdvice counts one classification and whether it fell back to the general tips.
func ObserveAdvice(fallback bool) {
	atomic.AddInt64(&tipsServed, 1)
	if fallback {
		atomic.AddInt64(&fallbackServed, 1)
	}
}

func Snapshot() map[string]int64 {
	return map[string]int64{
		"jobs_succeeded":   atomic.LoadInt64(&jobsSucceeded),
		"jobs_failed":      atomic.LoadInt64(&jobsFailed),
		"advice_served":    atomic.LoadInt64(&tipsServed),
		"advice_fallback":  atomic.LoadInt64(&fallbackServed),
		"reports_recorded": atomic.LoadInt64(&reportsRecorded),
		"alerts_sent":      atomic.LoadInt64(&alertsSent),
	}
}
