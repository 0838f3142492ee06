package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackDisplayName(t *testing.T) {
	cases := []struct {
		name    string
		profile Profile
		want    string
	}{
		{"display name wins", Profile{DisplayName: "Uma", Email: "uma@example.com"}, "Uma"},
		{"email local part", Profile{Email: "uma@example.com"}, "uma"},
		{"bare at sign", Profile{Email: "@example.com"}, "Member"},
		{"no email", Profile{}, "Member"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.profile.FallbackDisplayName())
		})
	}
}

func TestConversationCounterpart(t *testing.T) {
	conv := Conversation{UserID: "u1", MentorID: "m1", UserName: "Uma", MentorName: "Mia"}

	assert.Equal(t, "m1", conv.CounterpartID("u1"))
	assert.Equal(t, "u1", conv.CounterpartID("m1"))
	assert.Equal(t, "Mia", conv.CounterpartName("u1"))
	assert.Equal(t, "Uma", conv.CounterpartName("m1"))
}

func TestConversationIsParticipant(t *testing.T) {
	conv := Conversation{UserID: "u1", MentorID: "m1"}

	assert.True(t, conv.IsParticipant("u1"))
	assert.True(t, conv.IsParticipant("m1"))
	assert.False(t, conv.IsParticipant("stranger"))
}
