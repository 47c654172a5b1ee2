package search

import (
	"strings"

	"github.com/raphaelgruber/dispatchdesk/internal/models"
)

func leadFields(l models.Lead) []string {
	fields := []string{l.FullName, l.ServiceRequested, l.Status}
	if l.UrgencyHint != nil {
		fields = append(fields, *l.UrgencyHint)
	}
	return fields
}

func jobFields(j models.Job) []string {
	return []string{
		j.Status,
		j.ScheduledDate,
		j.ScheduledWindowStart,
		j.ScheduledWindowEnd,
		j.SubcontractorName(),
	}
}

func subcontractorFields(s models.Subcontractor) []string {
	return []string{s.Name, s.Phone, s.Services()}
}

// matches reports whether any field contains q. q must already be normalized.
func matches(fields []string, q string) bool {
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func filter[T any](items []T, q string, fields func(T) []string) []T {
	out := make([]T, 0)
	for _, item := range items {
		if matches(fields(item), q) {
			out = append(out, item)
		}
	}
	return out
}
