package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesClassified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_messages_classified_total",
		Help: "Решения классификатора по входящим сообщениям",
	}, []string{"reason"})
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_notifications_total",
		Help: "Отправка уведомлений по целевым каналам",
	}, []string{"status"})
	RetractedMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_retracted_messages_total",
		Help: "Отозванные уведомления",
	}, []string{"status"})
	CleanupMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cleanup_messages_total",
		Help: "Удалённые и неудалённые собственные сообщения",
	}, []string{"mode", "result"})
	FloodWaitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backend_flood_waits_total",
		Help: "Количество FLOOD_WAIT от бэкенда",
	})
	FloodWaitSeconds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backend_flood_wait_seconds_total",
		Help: "Суммарное время ожидания по FLOOD_WAIT",
	})
	DedupEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_dedup_entries",
		Help: "Число записей в хранилище дедупликации",
	})
	BackendConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backend_connected",
		Help: "1, если соединение с бэкендом активно",
	})
	SweepSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cleanup_sweep_seconds",
		Help:    "Длительность прохода очистки",
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"mode"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 25, 30, 45, 60, 90, 120, 180, 300, 600},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		MessagesClassified,
		NotificationsTotal,
		RetractedMessages,
		CleanupMessages,
		FloodWaitsTotal,
		FloodWaitSeconds,
		DedupEntries,
		BackendConnected,
		SweepSeconds,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// IncClassified учитывает решение классификатора.
func IncClassified(reason string) {
	MessagesClassified.WithLabelValues(reason).Inc()
}

// AddNotifications учитывает результат рассылки по целям.
func AddNotifications(sent, failed int) {
	if sent > 0 {
		NotificationsTotal.WithLabelValues("sent").Add(float64(sent))
	}
	if failed > 0 {
		NotificationsTotal.WithLabelValues("failed").Add(float64(failed))
	}
}

// AddRetracted учитывает отозванные уведомления.
func AddRetracted(deleted, failed int) {
	if deleted > 0 {
		RetractedMessages.WithLabelValues("deleted").Add(float64(deleted))
	}
	if failed > 0 {
		RetractedMessages.WithLabelValues("failed").Add(float64(failed))
	}
}

// AddCleanup учитывает итог удаления для режима sweep или purge.
func AddCleanup(mode string, deleted, failed int) {
	if deleted > 0 {
		CleanupMessages.WithLabelValues(mode, "deleted").Add(float64(deleted))
	}
	if failed > 0 {
		CleanupMessages.WithLabelValues(mode, "failed").Add(float64(failed))
	}
}

// ObserveFloodWait учитывает вынужденную паузу.
func ObserveFloodWait(wait time.Duration) {
	FloodWaitsTotal.Inc()
	FloodWaitSeconds.Add(wait.Seconds())
}

// SetDedupEntries обновляет размер хранилища дедупликации.
func SetDedupEntries(n int) {
	DedupEntries.Set(float64(n))
}

// SetConnected выставляет состояние соединения.
func SetConnected(connected bool) {
	if connected {
		BackendConnected.Set(1)
		return
	}
	BackendConnected.Set(0)
}

// ObserveSweep записывает длительность прохода очистки.
func ObserveSweep(mode string, start time.Time) {
	SweepSeconds.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}
