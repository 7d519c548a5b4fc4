package sort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	methods, err := Parse("started_at:desc, decision")
	require.NoError(t, err)
	assert.Equal(t, []Method{{Name: "started_at", Type: Desc}, {Name: "decision", Type: Asc}}, methods)

	_, err = Parse("started_at:sideways")
	assert.Error(t, err)

	methods, err = Parse("")
	require.NoError(t, err)
	assert.Empty(t, methods)
}

func TestGetSort(t *testing.T) {
	clause, err := GetSort([]string{"started_at", "decision"}, "interview_sessions",
		[]Method{{Name: "started_at", Type: Desc}, {Name: "decision", Type: Asc}})
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY `interview_sessions`.`started_at` DESC, `interview_sessions`.`decision` ASC", clause)

	_, err = GetSort([]string{"started_at"}, "interview_sessions", []Method{{Name: "1; DROP TABLE x"}})
	assert.Error(t, err)

	clause, err = GetSort([]string{"started_at"}, "interview_sessions", nil)
	require.NoError(t, err)
	assert.Empty(t, clause)
}
