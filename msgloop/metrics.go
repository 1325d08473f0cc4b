package msgloop

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports Prometheus metrics for any number of loops. Attach it to a
// loop using WithMetrics. Series are labelled by loop name, or by loop ID,
// for unnamed loops.
type Metrics struct {
	tasksRun       *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	queueDelay     *prometheus.HistogramVec
	loopsDestroyed prometheus.Counter
}

// NewMetrics creates the collectors, registering them with reg, if non-nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		tasksRun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: `msgloop`,
			Name:      `tasks_run_total`,
			Help:      `Number of tasks run, by loop and kind (immediate or delayed).`,
		}, []string{`loop`, `kind`}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: `msgloop`,
			Name:      `task_duration_seconds`,
			Help:      `Time spent running each task, including nested loops.`,
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{`loop`}),
		queueDelay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: `msgloop`,
			Name:      `task_queue_delay_seconds`,
			Help:      `Time between a task becoming eligible to run, and it starting.`,
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{`loop`}),
		loopsDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: `msgloop`,
			Name:      `loops_destroyed_total`,
			Help:      `Number of loops closed.`,
		}),
	}
	if reg != nil {
		for _, c := range [...]prometheus.Collector{m.tasksRun, m.taskDuration, m.queueDelay, m.loopsDestroyed} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// loopMetrics is the per-loop TaskObserver and DestructionObserver.
type loopMetrics struct {
	m       *Metrics
	loop    *Loop
	started []time.Time // stack, tasks nest
}

func (m *Metrics) observe(l *Loop) *loopMetrics {
	return &loopMetrics{m: m, loop: l}
}

func (x *loopMetrics) label() string {
	if name := x.loop.Name(); name != `` {
		return name
	}
	return strconv.FormatUint(x.loop.ID(), 10)
}

func (x *loopMetrics) WillProcessTask(task PendingTask) {
	now := time.Now()
	x.started = append(x.started, now)
	if delay := now.Sub(task.runTime()); delay > 0 {
		x.m.queueDelay.WithLabelValues(x.label()).Observe(delay.Seconds())
	} else {
		x.m.queueDelay.WithLabelValues(x.label()).Observe(0)
	}
}

func (x *loopMetrics) DidProcessTask(task PendingTask) {
	if len(x.started) == 0 {
		return
	}
	started := x.started[len(x.started)-1]
	x.started = x.started[:len(x.started)-1]

	label := x.label()
	x.m.taskDuration.WithLabelValues(label).Observe(time.Since(started).Seconds())

	kind := `immediate`
	if task.IsDelayed() {
		kind = `delayed`
	}
	x.m.tasksRun.WithLabelValues(label, kind).Inc()
}

func (x *loopMetrics) WillDestroyCurrentLoop() {
	x.m.loopsDestroyed.Inc()
}
