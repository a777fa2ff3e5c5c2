// Package metrics exposes prometheus counters for the billing engine
// and the usage ledger.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics counts ingested usage and upload records.
type LedgerMetrics struct {
	usageRecords  *prometheus.CounterVec
	uploadRecords *prometheus.CounterVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerMetrics     *LedgerMetrics
)

// Ledger returns the singleton ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerMetrics = newLedgerMetrics(prometheus.DefaultRegisterer)
	})
	return ledgerMetrics
}

func newLedgerMetrics(registerer prometheus.Registerer) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	usageRecords := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meterbill_usage_records_total",
		Help: "Billable inference calls recorded, by model family.",
	}, []string{"family"})
	uploadRecords := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meterbill_upload_records_total",
		Help: "Billable ingestion batches recorded, by model family.",
	}, []string{"family"})

	for _, c := range []prometheus.Collector{usageRecords, uploadRecords} {
		_ = registerer.Register(c)
	}

	return &LedgerMetrics{
		usageRecords:  usageRecords,
		uploadRecords: uploadRecords,
	}
}

func (m *LedgerMetrics) IncUsageRecord(family string) {
	if m == nil {
		return
	}
	m.usageRecords.WithLabelValues(family).Inc()
}

func (m *LedgerMetrics) IncUploadRecord(family string) {
	if m == nil {
		return
	}
	m.uploadRecords.WithLabelValues(family).Inc()
}

// BillingMetrics tracks invoicing outcomes and notification delivery.
type BillingMetrics struct {
	invoicesIssued       prometheus.Counter
	invoiceFailures      prometheus.Counter
	paymentsVerified     prometheus.Counter
	notificationFailures *prometheus.CounterVec
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the singleton billing metrics registry.
func Billing() *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer)
	})
	return billingMetrics
}

func newBillingMetrics(registerer prometheus.Registerer) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	invoicesIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meterbill_invoices_issued_total",
		Help: "Invoices generated and committed.",
	})
	invoiceFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meterbill_invoice_failures_total",
		Help: "Invoicing attempts that failed before commit.",
	})
	paymentsVerified := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meterbill_payments_verified_total",
		Help: "Billing cycles confirmed paid.",
	})
	notificationFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meterbill_notification_failures_total",
		Help: "Best-effort notification deliveries that failed, by kind.",
	}, []string{"kind"})

	for _, c := range []prometheus.Collector{invoicesIssued, invoiceFailures, paymentsVerified, notificationFailures} {
		_ = registerer.Register(c)
	}

	return &BillingMetrics{
		invoicesIssued:       invoicesIssued,
		invoiceFailures:      invoiceFailures,
		paymentsVerified:     paymentsVerified,
		notificationFailures: notificationFailures,
	}
}

func (m *BillingMetrics) IncInvoiceIssued() {
	if m == nil {
		return
	}
	m.invoicesIssued.Inc()
}

func (m *BillingMetrics) IncInvoiceFailure() {
	if m == nil {
		return
	}
	m.invoiceFailures.Inc()
}

func (m *BillingMetrics) IncPaymentVerified() {
	if m == nil {
		return
	}
	m.paymentsVerified.Inc()
}

func (m *BillingMetrics) IncNotificationFailure(kind string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(kind).Inc()
}
