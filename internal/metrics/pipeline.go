package metrics

import "time"

// RecordPipelineRun records one producer run and, on success, the snapshot size.
func (m *Metrics) RecordPipelineRun(duration time.Duration, designs, cities int, err error) {
	m.safeExecute("RecordPipelineRun", func() {
		m.PipelineRunDuration.Observe(duration.Seconds())
		if err != nil {
			m.PipelineRunsTotal.WithLabelValues("error").Inc()
			return
		}
		m.PipelineRunsTotal.WithLabelValues("success").Inc()
		m.SnapshotDesigns.Set(float64(designs))
		m.SnapshotCities.Set(float64(cities))
	})
}

func (m *Metrics) RecordCacheLookup(status string) {
	m.safeExecute("RecordCacheLookup", func() {
		m.CacheLookupsTotal.WithLabelValues(status).Inc()
	})
}

func (m *Metrics) RecordCalendarSync(upserted, unchanged, deleted, failed int) {
	m.safeExecute("RecordCalendarSync", func() {
		m.CalendarEventsSynced.WithLabelValues("upserted").Add(float64(upserted))
		m.CalendarEventsSynced.WithLabelValues("unchanged").Add(float64(unchanged))
		m.CalendarEventsSynced.WithLabelValues("deleted").Add(float64(deleted))
		m.CalendarEventsSynced.WithLabelValues("failed").Add(float64(failed))
	})
}
