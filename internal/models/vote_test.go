package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestVoteSessionTallyAndApproval(t *testing.T) {
	v := NewVoteSession(uuid.New(), uuid.New(), time.Now(), 5*time.Second)
	assert.False(t, v.Approved(), "no responses rejects")

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	v.Record(a, true)
	v.Record(b, false)

	approvals, total := v.Tally()
	assert.Equal(t, 1, approvals)
	assert.Equal(t, 2, total)
	assert.False(t, v.Approved(), "an even split is not a majority")

	v.Record(c, true)
	assert.True(t, v.Approved())
}

func TestVoteSessionRepeatBallotOverwrites(t *testing.T) {
	v := NewVoteSession(uuid.New(), uuid.New(), time.Now(), 5*time.Second)
	voter := uuid.New()

	v.Record(voter, false)
	v.Record(voter, true)

	assert.Equal(t, []uuid.UUID{voter}, v.Order, "arrival order keeps the first entry")
	approvals, total := v.Tally()
	assert.Equal(t, 1, approvals)
	assert.Equal(t, 1, total)
}
