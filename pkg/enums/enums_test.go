package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSongSortFallsBackToTitleAsc(t *testing.T) {
	assert.Equal(t, SongSortTitleDesc, ParseSongSort("title_desc"))
	assert.Equal(t, SongSortArtistAsc, ParseSongSort(" ARTIST_ASC "))
	assert.Equal(t, SongSortTitleAsc, ParseSongSort(""))
	assert.Equal(t, SongSortTitleAsc, ParseSongSort("newest"))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("Administrator")
	require.NoError(t, err)
	assert.Equal(t, RoleAdministrator, role)

	_, err = ParseRole("administrator")
	require.Error(t, err, "role names are case sensitive")
}

func TestOutboxEventTypes(t *testing.T) {
	evt, err := ParseOutboxEventType("registration_approved")
	require.NoError(t, err)
	assert.True(t, evt.IsValid())

	_, err = ParseOutboxEventType("order_created")
	require.Error(t, err)

	agg, err := ParseOutboxAggregateType("song")
	require.NoError(t, err)
	assert.Equal(t, AggregateSong, agg)
}

func TestEventTypesBelongToOneAggregate(t *testing.T) {
	assert.Equal(t, AggregateRegistrationRequest, EventRegistrationRejected.Aggregate())
	assert.Equal(t, AggregateSong, EventSongDeleted.Aggregate())
	assert.Equal(t, AggregateAccount, EventAccountDeleted.Aggregate())
	assert.Empty(t, OutboxEventType("order_created").Aggregate())
	for event, aggregate := range eventAggregates {
		assert.True(t, aggregate.IsValid(), "event %s maps to unknown aggregate", event)
	}
}

func TestOutboxDLQReasons(t *testing.T) {
	assert.True(t, OutboxDLQReasonMaxAttempts.IsValid())
	assert.True(t, OutboxDLQReasonNonRetryable.IsValid())
	assert.False(t, OutboxDLQErrorReason("timeout").IsValid())
}
