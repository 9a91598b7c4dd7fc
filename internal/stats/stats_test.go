package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinbeasnunez/superscrap-sub000/internal/model"
)

// 15:00 UTC = 10:00 in the UTC-5 business zone.
var now = time.Date(2025, 6, 15, 15, 0, 0, 0, time.UTC)

func at(t time.Time) *time.Time { return &t }

func TestStartOfBusinessDay_FixedOffset(t *testing.T) {
	// 03:00 UTC on June 15 is still June 14 in UTC-5.
	early := time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
	start := StartOfBusinessDay(early)

	assert.Equal(t, 14, start.In(time.FixedZone("UTC-5", -5*3600)).Day())
	assert.True(t, start.Before(early))
}

func TestSummarize_TodayGatedByBusinessDay(t *testing.T) {
	// Business day started at 05:00 UTC (midnight UTC-5).
	contactedToday := at(time.Date(2025, 6, 15, 6, 0, 0, 0, time.UTC))
	contactedYesterday := at(time.Date(2025, 6, 15, 4, 0, 0, 0, time.UTC))

	businesses := []*model.Business{
		{Name: "a", ContactActions: []model.ContactAction{model.ActionWhatsApp}, ContactedAt: contactedToday, LeadStatus: model.LeadNoContact},
		{Name: "b", ContactActions: []model.ContactAction{model.ActionEmail, model.ActionCall}, ContactedAt: contactedYesterday, LeadStatus: model.LeadProspect},
		{Name: "c", LeadStatus: model.LeadNoContact},
	}

	s := Summarize(businesses, now)

	assert.Equal(t, 3, s.AllTime.Total)
	assert.Equal(t, 1, s.AllTime.Actions[model.ActionWhatsApp])
	assert.Equal(t, 1, s.AllTime.Actions[model.ActionEmail])
	assert.Equal(t, 1, s.AllTime.Actions[model.ActionCall])
	assert.Equal(t, 2, s.AllTime.Statuses[model.LeadNoContact])
	assert.Equal(t, 1, s.AllTime.Statuses[model.LeadProspect])

	assert.Equal(t, 1, s.Today.Total, "only the 06:00 UTC contact falls inside the UTC-5 day")
	assert.Equal(t, 1, s.Today.Actions[model.ActionWhatsApp])
	assert.Zero(t, s.Today.Actions[model.ActionEmail])
}

func TestFollowUps(t *testing.T) {
	mk := func(name string, daysAgo int, status model.LeadStatus) *model.Business {
		return &model.Business{
			Name:           name,
			LeadStatus:     status,
			ContactActions: []model.ContactAction{model.ActionCall},
			ContactedAt:    at(now.Add(-time.Duration(daysAgo) * 24 * time.Hour)),
		}
	}

	businesses := []*model.Business{
		mk("stale5", 5, model.LeadNoContact),
		mk("stale8", 8, model.LeadNoContact),
		mk("fresh", 1, model.LeadNoContact),
		mk("prospect", 9, model.LeadProspect),   // already qualified in
		mk("discarded", 9, model.LeadDiscarded), // qualified out
		{Name: "nocontact", LeadStatus: model.LeadNoContact},
	}

	items := FollowUps(businesses, now, 0)
	require.Len(t, items, 2)
	assert.Equal(t, "stale8", items[0].Business.Name, "most overdue first")
	assert.Equal(t, 8, items[0].DaysSinceContact)
	assert.Equal(t, "stale5", items[1].Business.Name)
}

func TestFollowUps_CustomThreshold(t *testing.T) {
	b := &model.Business{
		Name:           "x",
		LeadStatus:     model.LeadNoContact,
		ContactActions: []model.ContactAction{model.ActionCall},
		ContactedAt:    at(now.Add(-5 * 24 * time.Hour)),
	}
	assert.Len(t, FollowUps([]*model.Business{b}, now, 7), 0)
	assert.Len(t, FollowUps([]*model.Business{b}, now, 5), 1)
}

func TestContactedToday_MostRecentFirst(t *testing.T) {
	early := at(time.Date(2025, 6, 15, 6, 0, 0, 0, time.UTC))
	late := at(time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC))
	yesterday := at(time.Date(2025, 6, 14, 23, 0, 0, 0, time.UTC))

	mk := func(name string, when *time.Time) *model.Business {
		return &model.Business{
			Name:           name,
			LeadStatus:     model.LeadNoContact,
			ContactActions: []model.ContactAction{model.ActionWhatsApp},
			ContactedAt:    when,
		}
	}

	out := ContactedToday([]*model.Business{mk("early", early), mk("late", late), mk("old", yesterday)}, now)
	require.Len(t, out, 2)
	assert.Equal(t, "late", out[0].Name)
	assert.Equal(t, "early", out[1].Name)
}
