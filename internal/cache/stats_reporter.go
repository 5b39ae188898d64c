package cache

import (
	"log"

	"github.com/robfig/cron/v3"
)

// Reporter is anything that can produce a point-in-time Stats snapshot,
// satisfied by *FactoryCache[K, Req, Rep] for any instantiation.
type Reporter interface {
	Stats() Stats
}

// StatsReporter periodically logs cache stats on a cron schedule, the way
// config.EnvConfig.GeoIPUpdateSchedule drives a cron-scheduled job in the
// teacher repo.
type StatsReporter struct {
	cronSched *cron.Cron
	tag       string
	cache     Reporter
}

// NewStatsReporter builds (but does not start) a reporter that logs tag's
// cache stats on the given standard cron schedule (e.g. "*/1 * * * *").
func NewStatsReporter(tag, schedule string, c Reporter) (*StatsReporter, error) {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, err
	}
	r := &StatsReporter{
		cronSched: cron.New(),
		tag:       tag,
		cache:     c,
	}
	r.cronSched.Schedule(sched, cron.FuncJob(r.log))
	return r, nil
}

func (r *StatsReporter) log() {
	s := r.cache.Stats()
	log.Printf("[%s] size=%d misses=%d evictions=%d idle=%d", r.tag, s.Size, s.Misses, s.Evictions, s.Idle)
}

// Start begins the cron schedule in the background.
func (r *StatsReporter) Start() {
	r.cronSched.Start()
}

// Stop halts the schedule, waiting for any in-flight run to finish.
func (r *StatsReporter) Stop() {
	ctx := r.cronSched.Stop()
	<-ctx.Done()
}
