package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartMutationsTotal counts cart line mutations by operation and outcome.
	CartMutationsTotal *prometheus.CounterVec
	// CheckoutOrdersTotal counts checkout attempts by outcome.
	CheckoutOrdersTotal *prometheus.CounterVec
	// ProductLookupTotal counts product resolutions by source (cache, db, miss).
	ProductLookupTotal *prometheus.CounterVec
	// ComposedLinesTotal counts priced lines produced for carts and orders.
	ComposedLinesTotal prometheus.Counter
	// OrderStatusTransitions counts order status changes.
	OrderStatusTransitions *prometheus.CounterVec
	// NotificationsTotal counts notification tasks by stage (enqueue, send) and result.
	NotificationsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart line mutations by operation and result.",
		}, []string{"op", "result"})
		CheckoutOrdersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_orders_total",
			Help:      "Count of checkout attempts by result.",
		}, []string{"result"})
		ProductLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "product_lookup_total",
			Help:      "Count of product lookups by source.",
		}, []string{"source"})
		ComposedLinesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "composed_lines_total",
			Help:      "Number of cart or order lines priced.",
		})
		OrderStatusTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Count of order status transitions.",
		}, []string{"from", "to"})
		NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Count of order notifications by stage and result.",
		}, []string{"stage", "result"})

		mustRegisterCollector(reg, CartMutationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartMutationsTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutOrdersTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutOrdersTotal = v
			}
		})
		mustRegisterCollector(reg, ProductLookupTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ProductLookupTotal = v
			}
		})
		mustRegisterCollector(reg, ComposedLinesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ComposedLinesTotal = v
			}
		})
		mustRegisterCollector(reg, OrderStatusTransitions, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrderStatusTransitions = v
			}
		})
		mustRegisterCollector(reg, NotificationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				NotificationsTotal = v
			}
		})
	})
}

// RecordCartMutation is a no-op until MustRegisterDomainMetrics has run.
func RecordCartMutation(op string, err error) {
	if CartMutationsTotal == nil {
		return
	}
	CartMutationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

// RecordCheckout increments checkout_orders_total.
func RecordCheckout(result string) {
	if CheckoutOrdersTotal == nil {
		return
	}
	CheckoutOrdersTotal.WithLabelValues(result).Inc()
}

// RecordProductLookup increments product_lookup_total for source.
func RecordProductLookup(source string) {
	if ProductLookupTotal == nil {
		return
	}
	ProductLookupTotal.WithLabelValues(source).Inc()
}

// RecordComposedLines adds n to composed_lines_total.
func RecordComposedLines(n int) {
	if ComposedLinesTotal == nil || n <= 0 {
		return
	}
	ComposedLinesTotal.Add(float64(n))
}

// RecordOrderTransition increments order_status_transitions_total.
func RecordOrderTransition(from, to string) {
	if OrderStatusTransitions == nil {
		return
	}
	OrderStatusTransitions.WithLabelValues(from, to).Inc()
}

// RecordNotification increments notifications_total.
func RecordNotification(stage string, err error) {
	if NotificationsTotal == nil {
		return
	}
	NotificationsTotal.WithLabelValues(stage, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
