package confidence

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewQueue_RingNewestFirst(t *testing.T) {
	q := NewReviewQueue(3)
	var ids []string
	for _, query := range []string{"a", "b", "c", "d", "e"} {
		ids = append(ids, q.Add(ReviewItem{Query: query, Answer: "x"}).ID)
	}

	items := q.List(0)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"e", "d", "c"}, []string{items[0].Query, items[1].Query, items[2].Query})
	assert.Len(t, q.List(2), 2)

	_, ok := q.Get(ids[0])
	assert.False(t, ok, "oldest item dropped")
	it, ok := q.Get(ids[4])
	require.True(t, ok)
	assert.Equal(t, StatusPending, it.Status)
	assert.True(t, strings.HasPrefix(it.ID, "rev_"))
	assert.False(t, it.Timestamp.IsZero())
}

func TestReviewQueue_TruncatesAnswer(t *testing.T) {
	q := NewReviewQueue(1)
	it := q.Add(ReviewItem{Query: "q", Answer: strings.Repeat("₹", 600)})
	assert.Equal(t, 500, utf8.RuneCountInString(it.Answer))
}

func TestReviewQueue_UpdateStatus(t *testing.T) {
	q := NewReviewQueue(5)
	id := q.Add(ReviewItem{Query: "q", Answer: "a"}).ID

	_, err := q.UpdateStatus(id, "maybe", "ca-1", "")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = q.UpdateStatus(id, StatusEdited, "ca-1", "")
	assert.ErrorIs(t, err, ErrInvalidStatus, "edits need a correction")
	_, err = q.UpdateStatus("missing", StatusApproved, "ca-1", "")
	assert.ErrorIs(t, err, ErrNotFound)

	it, err := q.UpdateStatus(id, StatusEdited, "ca-1", "STCG is 20%.")
	require.NoError(t, err)
	assert.Equal(t, StatusEdited, it.Status)
	assert.Equal(t, "ca-1", it.ReviewerID)
	assert.Equal(t, "STCG is 20%.", it.Correction)
	assert.False(t, it.UpdatedAt.IsZero())

	_, err = q.UpdateStatus(id, StatusApproved, "ca-2", "")
	assert.ErrorIs(t, err, ErrAlreadyReviewed)

	stored, _ := q.Get(id)
	assert.Equal(t, StatusEdited, stored.Status)
}
