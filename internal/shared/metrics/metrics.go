package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	invitationsSentTotal   atomic.Uint64
	invitationsFailedTotal atomic.Uint64
	signaturesSubmitted    atomic.Uint64
	documentsCompleted     atomic.Uint64
	documentsDeclined      atomic.Uint64
	remindersSentTotal     atomic.Uint64
	remindersFailedTotal   atomic.Uint64
	documentsPurgedTotal   atomic.Uint64
	purgeFailedTotal       atomic.Uint64
	finalizeFailedTotal    atomic.Uint64
	jobsReceivedTotal      atomic.Uint64
	jobsCompletedTotal     atomic.Uint64
	jobsFailedTotal        atomic.Uint64
	jobsDroppedTotal       atomic.Uint64

	composeDuration = newHistogram([]float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000})
)

// IncInvitationSent counts a delivered invitation.
func IncInvitationSent() { invitationsSentTotal.Add(1) }

// IncInvitationFailed counts an invitation the notifier rejected.
func IncInvitationFailed() { invitationsFailedTotal.Add(1) }

// IncSignaturesSubmitted counts a committed signer submission.
func IncSignaturesSubmitted() { signaturesSubmitted.Add(1) }

// IncDocumentCompleted counts documents that reached completed.
func IncDocumentCompleted() { documentsCompleted.Add(1) }

// IncDocumentDeclined counts documents killed by a decline.
func IncDocumentDeclined() { documentsDeclined.Add(1) }

// IncReminderSent counts reminders delivered by the scheduler.
func IncReminderSent() { remindersSentTotal.Add(1) }

// IncReminderFailed counts reminders that could not be delivered.
func IncReminderFailed() { remindersFailedTotal.Add(1) }

// IncDocumentPurged counts documents removed by retention.
func IncDocumentPurged() { documentsPurgedTotal.Add(1) }

// IncPurgeFailed counts documents retention failed to remove.
func IncPurgeFailed() { purgeFailedTotal.Add(1) }

// IncFinalizeFailed counts completion finalizations that must be retried.
func IncFinalizeFailed() { finalizeFailedTotal.Add(1) }

// IncJobsReceived increments the worker received counter.
func IncJobsReceived() { jobsReceivedTotal.Add(1) }

// IncJobsCompleted increments the worker completed counter.
func IncJobsCompleted() { jobsCompletedTotal.Add(1) }

// IncJobsFailed increments the worker failed counter.
func IncJobsFailed() { jobsFailedTotal.Add(1) }

// IncJobsDroppedUnrecoverable counts messages deleted without processing.
func IncJobsDroppedUnrecoverable() { jobsDroppedTotal.Add(1) }

// ObserveComposeDurationMs records a PDF composition duration in milliseconds.
func ObserveComposeDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	composeDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "esign_invitations_sent_total", "Invitations delivered to signers", invitationsSentTotal.Load())
	writeCounter(&buf, "esign_invitations_failed_total", "Invitations the notifier rejected", invitationsFailedTotal.Load())
	writeCounter(&buf, "esign_signature_submissions_total", "Committed signer submissions", signaturesSubmitted.Load())
	writeCounter(&buf, "esign_documents_completed_total", "Documents completed", documentsCompleted.Load())
	writeCounter(&buf, "esign_documents_declined_total", "Documents declined", documentsDeclined.Load())
	writeCounter(&buf, "esign_reminders_sent_total", "Reminders delivered", remindersSentTotal.Load())
	writeCounter(&buf, "esign_reminders_failed_total", "Reminders failed", remindersFailedTotal.Load())
	writeCounter(&buf, "esign_documents_purged_total", "Documents removed by retention", documentsPurgedTotal.Load())
	writeCounter(&buf, "esign_purge_failed_total", "Documents retention failed to remove", purgeFailedTotal.Load())
	writeCounter(&buf, "esign_finalize_failed_total", "Completion finalizations pending retry", finalizeFailedTotal.Load())
	writeCounter(&buf, "esign_jobs_received_total", "Worker jobs received", jobsReceivedTotal.Load())
	writeCounter(&buf, "esign_jobs_completed_total", "Worker jobs completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "esign_jobs_failed_total", "Worker jobs failed", jobsFailedTotal.Load())
	writeCounter(&buf, "esign_jobs_dropped_total", "Worker jobs dropped as unrecoverable", jobsDroppedTotal.Load())
	writeHistogram(&buf, "esign_pdf_compose_duration_ms", "PDF composition duration in milliseconds", composeDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	// Observe already counts a value in every bucket whose bound covers it.
	for i, bound := range snap.buckets {
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), snap.counts[i])
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
