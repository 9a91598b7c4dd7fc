package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLeadStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want LeadStatus
	}{
		{"lead", LeadProspect},
		{"contacted", LeadNoContact},
		{"", LeadNoContact},
		{"no_contact", LeadNoContact},
		{"prospect", LeadProspect},
		{"discarded", LeadDiscarded},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLeadStatus(tt.raw))
		})
	}
}

func TestRecordAction_MembershipSemantics(t *testing.T) {
	b := &Business{}
	now := time.Now()

	grew := b.RecordAction(ActionWhatsApp, "user-1", now)
	assert.True(t, grew)
	grew = b.RecordAction(ActionWhatsApp, "user-1", now.Add(time.Hour))
	assert.False(t, grew, "same action twice must not duplicate")

	assert.Equal(t, []ContactAction{ActionWhatsApp}, b.ContactActions)
	require.NotNil(t, b.ContactedAt)
	assert.Equal(t, now.Add(time.Hour), *b.ContactedAt, "repeat contact still refreshes contacted_at")
	assert.Equal(t, "user-1", b.ContactedBy)
}

func TestNormalize_LiftsLegacyContactStatus(t *testing.T) {
	now := time.Now()
	b := &Business{LeadStatus: "lead", ContactedAt: &now, ContactedBy: "u"}

	b.Normalize("email")

	assert.Equal(t, LeadProspect, b.LeadStatus)
	assert.Equal(t, []ContactAction{ActionEmail}, b.ContactActions)
	require.NotNil(t, b.ContactedAt)
}

func TestNormalize_ClearsContactFieldsWithoutActions(t *testing.T) {
	now := time.Now()
	b := &Business{ContactedAt: &now, ContactedBy: "u"}

	b.Normalize("")

	assert.Nil(t, b.ContactedAt, "contacted_at must be null without contact actions")
	assert.Empty(t, b.ContactedBy)
}

func TestNormalize_IgnoresUnknownLegacyAction(t *testing.T) {
	b := &Business{}
	b.Normalize("fax")
	assert.Empty(t, b.ContactActions)
}
