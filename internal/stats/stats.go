// Package stats derives contact counters and follow-up lists from the
// business set. All "today" math uses the fixed UTC-5 business timezone,
// never the server's local zone.
package stats

import (
	"sort"
	"time"

	"github.com/martinbeasnunez/superscrap-sub000/internal/kanban"
	"github.com/martinbeasnunez/superscrap-sub000/internal/model"
)

// businessTZ is the company's operating timezone (Lima, no DST).
var businessTZ = time.FixedZone("UTC-5", -5*60*60)

// DefaultFollowUpDays is the minimum staleness for the follow-up list.
const DefaultFollowUpDays = 3

// Buckets counts businesses per contact action and per lead status.
type Buckets struct {
	Total    int                         `json:"total"`
	Actions  map[model.ContactAction]int `json:"actions"`
	Statuses map[model.LeadStatus]int    `json:"statuses"`
}

func newBuckets() Buckets {
	return Buckets{
		Actions:  make(map[model.ContactAction]int),
		Statuses: make(map[model.LeadStatus]int),
	}
}

// Summary is the aggregate view: running totals plus today's slice.
type Summary struct {
	AllTime Buckets `json:"all_time"`
	Today   Buckets `json:"today"`
}

// FollowUpItem is a business due for follow-up, with its staleness.
type FollowUpItem struct {
	Business         *model.Business `json:"business"`
	DaysSinceContact int             `json:"days_since_contact"`
}

// StartOfBusinessDay returns midnight of now's calendar day in the fixed
// business timezone.
func StartOfBusinessDay(now time.Time) time.Time {
	local := now.In(businessTZ)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, businessTZ)
}

// Summarize buckets every business into all-time counters, with a parallel
// bucket for businesses contacted on or after the start of the business day.
func Summarize(businesses []*model.Business, now time.Time) *Summary {
	dayStart := StartOfBusinessDay(now)

	s := &Summary{AllTime: newBuckets(), Today: newBuckets()}
	for _, b := range businesses {
		bucketInto(&s.AllTime, b)
		if b.ContactedAt != nil && !b.ContactedAt.Before(dayStart) {
			bucketInto(&s.Today, b)
		}
	}
	return s
}

func bucketInto(bk *Buckets, b *model.Business) {
	bk.Total++
	for _, a := range b.ContactActions {
		bk.Actions[a]++
	}
	bk.Statuses[b.LeadStatus]++
}

// followUpPopulation filters to businesses still worth chasing: contacted at
// least once and not already qualified out (discarded) or in (prospect).
func followUpPopulation(businesses []*model.Business) []*model.Business {
	var out []*model.Business
	for _, b := range businesses {
		if b.LeadStatus == model.LeadDiscarded || b.LeadStatus == model.LeadProspect {
			continue
		}
		if len(b.ContactActions) == 0 {
			continue
		}
		out = append(out, b)
	}
	return out
}

// FollowUps returns businesses whose last contact is at least minDays old,
// most overdue first. minDays <= 0 uses the default threshold.
func FollowUps(businesses []*model.Business, now time.Time, minDays int) []FollowUpItem {
	if minDays <= 0 {
		minDays = DefaultFollowUpDays
	}

	var items []FollowUpItem
	for _, b := range followUpPopulation(businesses) {
		days := kanban.DaysSinceContact(b.ContactedAt, now)
		if days == nil || *days < minDays {
			continue
		}
		items = append(items, FollowUpItem{Business: b, DaysSinceContact: *days})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DaysSinceContact > items[j].DaysSinceContact
	})
	return items
}

// ContactedToday returns the disjoint view: same population, last contact
// within the current business day, most recent first.
func ContactedToday(businesses []*model.Business, now time.Time) []*model.Business {
	dayStart := StartOfBusinessDay(now)

	var out []*model.Business
	for _, b := range followUpPopulation(businesses) {
		if b.ContactedAt == nil || b.ContactedAt.Before(dayStart) {
			continue
		}
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ContactedAt.After(*out[j].ContactedAt)
	})
	return out
}
