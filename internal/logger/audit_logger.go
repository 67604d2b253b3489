// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging for pricing and
// ticketing decisions.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogEdgeDetected logs an edge entering the actionable set.
func (al *AuditLogger) LogEdgeDetected(edgeID string, propID int64, modelVersionID string, ev, edgeScore, probOver float64) {
	al.WithFields(logrus.Fields{
		"edge_id":          edgeID,
		"prop_id":          propID,
		"model_version_id": modelVersionID,
		"ev":               ev,
		"edge_score":       edgeScore,
		"prob_over":        probOver,
	}).Info("Edge detected")
}

// LogEdgeRetired logs an edge leaving the actionable set.
func (al *AuditLogger) LogEdgeRetired(edgeID string, propID int64, reason string, retiredAt time.Time) {
	al.WithFields(logrus.Fields{
		"edge_id":    edgeID,
		"prop_id":    propID,
		"reason":     reason,
		"retired_at": retiredAt.Unix(),
	}).Info("Edge retired")
}

// LogTicketTransition logs a ticket lifecycle transition.
func (al *AuditLogger) LogTicketTransition(ticketID, userID, oldStatus, newStatus string, stake float64) {
	al.WithFields(logrus.Fields{
		"ticket_id":  ticketID,
		"user_id":    userID,
		"old_status": oldStatus,
		"new_status": newStatus,
		"stake":      stake,
	}).Info("Ticket state changed")
}

// LogRiskFindings logs the outcome of pre-submission risk checks.
func (al *AuditLogger) LogRiskFindings(ticketID, userID string, criticalCount, warningCount int, blocked bool) {
	entry := al.WithFields(logrus.Fields{
		"ticket_id":      ticketID,
		"user_id":        userID,
		"critical_count": criticalCount,
		"warning_count":  warningCount,
		"blocked":        blocked,
	})
	if blocked {
		entry.Warn("Risk checks blocked submission")
		return
	}
	entry.Info("Risk checks recorded")
}
