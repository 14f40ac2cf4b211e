package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sous-os/sous-core/internal/core"
	"github.com/sous-os/sous-core/internal/domain/model"
	"github.com/sous-os/sous-core/internal/observability/notify"
	"github.com/sous-os/sous-core/internal/service/failurenotifier"
)

// TicketSeverity buckets an inbound support report.
type TicketSeverity string

const (
	// TicketSeverityCritical reports block service operation outright.
	TicketSeverityCritical TicketSeverity = "critical"
	// TicketSeverityHigh reports degrade a customer-facing surface.
	TicketSeverityHigh TicketSeverity = "high"
	// TicketSeverityNormal is everything else.
	TicketSeverityNormal TicketSeverity = "normal"
)

// TriageResult is the outcome of classifying a support report. TicketID is
// the stored reference when a ticket store is wired.
type TriageResult struct {
	Severity TicketSeverity `json:"severity"`
	Team     string         `json:"team"`
	TicketID string         `json:"ticket_id,omitempty"`
}

// SupportServiceOptions groups dependencies for SupportService. Tickets and
// Notifier are optional; without them triage classifies only.
type SupportServiceOptions struct {
	Tickets  core.TicketRepository
	Notifier *failurenotifier.Service
	Logger   *slog.Logger
}

// SupportService classifies inbound support reports so the right team sees
// the right report first. Classification is keyword heuristics over the
// subject and body; the result is persisted and critical reports page.
type SupportService struct {
	tickets  core.TicketRepository
	notifier *failurenotifier.Service
	logger   *slog.Logger
}

// NewSupportService constructs a new SupportService.
func NewSupportService(opts SupportServiceOptions) *SupportService {
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "support_service")
	}
	return &SupportService{
		tickets:  opts.Tickets,
		notifier: opts.Notifier,
		logger:   logger,
	}
}

var criticalKeywords = []string{"outage", "down", "cannot process", "data loss", "payment failed"}

var highKeywords = []string{"display", "screen", "sync", "missing orders", "slow"}

// teamRoutes are checked in order; the first match wins.
var teamRoutes = []struct {
	team     string
	keywords []string
}{
	{team: "payments", keywords: []string{"payment", "commission", "charge", "refund", "billing"}},
	{team: "hardware", keywords: []string{"display", "screen", "device", "hardware"}},
	{team: "ingestion", keywords: []string{"sync", "catalog", "orders", "pos"}},
}

// TriageTicket classifies one report, records it, and pages on critical
// severity. The returned error is retryable storage failure; classification
// itself cannot fail.
func (s *SupportService) TriageTicket(ctx context.Context, organizationID, subject, body string) (TriageResult, error) {
	text := strings.ToLower(subject + " " + body)

	result := TriageResult{
		Severity: TicketSeverityNormal,
		Team:     "general",
	}
	if containsAny(text, highKeywords) {
		result.Severity = TicketSeverityHigh
	}
	if containsAny(text, criticalKeywords) {
		result.Severity = TicketSeverityCritical
	}

	for _, route := range teamRoutes {
		if containsAny(text, route.keywords) {
			result.Team = route.team
			break
		}
	}

	if s.tickets != nil {
		ticket, err := s.tickets.Create(ctx, &model.Ticket{
			OrganizationID: organizationID,
			Subject:        subject,
			Body:           body,
			Severity:       string(result.Severity),
			Team:           result.Team,
		})
		if err != nil {
			return TriageResult{}, fmt.Errorf("record ticket: %w", err)
		}
		result.TicketID = ticket.ID
	}

	if result.Severity == TicketSeverityCritical && s.notifier != nil {
		s.notifier.NotifyCriticalTicket(ctx, notify.JobFailurePayload{
			Kind:           string(model.KindTriageTicket),
			Queue:          string(model.QueueSupport),
			OrganizationID: organizationID,
			Error:          subject,
			Metadata: map[string]string{
				"team":      result.Team,
				"ticket_id": result.TicketID,
			},
		})
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "ticket triaged",
			"organization_id", organizationID,
			"severity", result.Severity,
			"team", result.Team,
			"ticket_id", result.TicketID,
		)
	}

	return result, nil
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if containsPhrase(text, kw) {
			return true
		}
	}
	return false
}

// containsPhrase reports whether phrase occurs in text on word boundaries,
// so "down" does not match inside "download".
func containsPhrase(text, phrase string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(phrase)
		if (i == 0 || !isWordChar(text[i-1])) && (end == len(text) || !isWordChar(text[end])) {
			return true
		}
		start = i + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
