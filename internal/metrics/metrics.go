// Package metrics содержит счётчики Prometheus для наблюдения за магазином.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OrdersCreated — количество оформленных заказов.
var OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "anphashop_orders_created_total",
	Help: "Number of checkouts that produced a pending order.",
})

// OrdersDelivered — количество успешно выданных заказов.
var OrdersDelivered = promauto.NewCounter(prometheus.CounterOpts{
	Name: "anphashop_orders_delivered_total",
	Help: "Number of orders fulfilled with account delivery.",
})

// DeliveryShortages — количество попыток выдачи, прерванных нехваткой аккаунтов.
var DeliveryShortages = promauto.NewCounter(prometheus.CounterOpts{
	Name: "anphashop_delivery_shortages_total",
	Help: "Number of delivery attempts aborted by stock shortage.",
})

// EmailsSent — количество отправленных писем по типам.
var EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "anphashop_emails_sent_total",
	Help: "Number of notification emails sent, by kind.",
}, []string{"kind"})

// EmailErrors — количество ошибок отправки писем.
var EmailErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "anphashop_email_errors_total",
	Help: "Number of notification emails that failed to send.",
})
