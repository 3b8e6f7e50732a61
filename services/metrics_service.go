package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

var (
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_http_requests_total",
			Help: "Total HTTP requests handled by the supervisor API",
		},
		[]string{"path", "code"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supervisor_http_request_duration_seconds",
			Help:    "Duration of supervisor API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	appLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_app_launches_total",
			Help: "App launch attempts by result (started/already_running/failed)",
		},
		[]string{"result"},
	)

	coreStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_core_service_starts_total",
			Help: "Core service starts by trigger (api/watchdog) and result",
		},
		[]string{"service", "trigger", "result"},
	)

	healthChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_app_health_checks_total",
			Help: "App health observations by status",
		},
		[]string{"status"},
	)

	runningApps = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "supervisor_running_apps",
		Help: "Number of tracked app records",
	})

	assignedPorts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "supervisor_assigned_ports",
		Help: "Number of ports assigned or reserved for apps",
	})

	watchdogTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "supervisor_watchdog_ticks_total",
		Help: "Number of watchdog passes over core services",
	})

	totalRequests = atomic.NewInt64(0)
	errorRequests = atomic.NewInt64(0)
)

func init() {
	prometheus.MustRegister(requestCount)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(appLaunches)
	prometheus.MustRegister(coreStarts)
	prometheus.MustRegister(healthChecks)
	prometheus.MustRegister(runningApps)
	prometheus.MustRegister(assignedPorts)
	prometheus.MustRegister(watchdogTicks)
}

// RecordRequest 记录一次HTTP请求，供中间件调用
func RecordRequest(path, code string, seconds float64, failed bool) {
	requestCount.WithLabelValues(path, code).Inc()
	requestDuration.WithLabelValues(path).Observe(seconds)
	totalRequests.Inc()
	if failed {
		errorRequests.Inc()
	}
}

func GetTotalRequestCount() int64 {
	return totalRequests.Load()
}

func GetTotalErrorCount() int64 {
	return errorRequests.Load()
}

func recordLaunch(result string) {
	appLaunches.WithLabelValues(result).Inc()
}

func recordCoreStart(service, trigger, result string) {
	coreStarts.WithLabelValues(service, trigger, result).Inc()
}

func recordHealth(status string) {
	healthChecks.WithLabelValues(status).Inc()
}

func updateAppGauge(n int) {
	runningApps.Set(float64(n))
}

func updatePortGauge(n int) {
	assignedPorts.Set(float64(n))
}
