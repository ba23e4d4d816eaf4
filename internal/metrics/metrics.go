package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifygw_dispatch_total",
			Help: "Provider dispatch attempts by channel and outcome",
		},
		[]string{"channel", "outcome"}, // email|whatsapp , sent|error|failed_permanent
	)

	RetrySweepTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifygw_retry_sweep_total",
			Help: "Records processed by the retry sweep by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifygw_webhook_events_total",
			Help: "Inbound provider webhook events by provider and result",
		},
		[]string{"provider", "result"}, // asaas|zapsign , applied|ignored|orphaned|error
	)

	HealthAlertsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifygw_health_alerts_total",
			Help: "Operator delivery-health alerts raised",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		DispatchTotal,
		RetrySweepTotal,
		WebhookEventsTotal,
		HealthAlertsTotal,
	)
}
