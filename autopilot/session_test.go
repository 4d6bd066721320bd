package autopilot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettingsClamp(t *testing.T) {
	assert := assert.New(t)

	s := Settings{
		PostFrequencyMins: 1,
		DailyPostCap:      -5,
		DailyCommentCap:   10_000,
		RiskProfile:       "yolo",
	}
	s.Clamp()

	assert.Equal(MinPostFrequencyMins, s.PostFrequencyMins)
	assert.Equal(0, s.DailyPostCap)
	assert.Equal(MaxDailyCap, s.DailyCommentCap)
	assert.Equal(RiskModerate, s.RiskProfile)
	assert.Equal(DefaultDispatchHealthMin, s.MinHealthScore)

	s = DefaultSettings()
	s.MinHealthScore = 250
	s.Clamp()
	assert.Equal(100, s.MinHealthScore)

	s = DefaultSettings()
	s.Clamp()
	assert.Equal(DefaultSettings().PostFrequencyMins, s.PostFrequencyMins)
}

func TestSettingsTypeEnabled(t *testing.T) {
	assert := assert.New(t)

	s := DefaultSettings()
	assert.False(s.typeEnabled(ActionPost))
	assert.True(s.typeEnabled(ActionComment))
	assert.True(s.typeEnabled(ActionVote))
	assert.False(s.typeEnabled("bogus"))

	s.EnablePosts = true
	assert.True(s.typeEnabled(ActionPost))
	assert.Equal(s.DailyPostCap, s.dailyCap(ActionPost))
	assert.Equal(0, s.dailyCap("bogus"))
}
