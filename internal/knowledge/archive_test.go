package knowledge

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quenito/internal/types"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := OpenArchive(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func archivedEvent(qtype string, strategy types.StrategyName, outcome types.Outcome) types.LearningEvent {
	return types.LearningEvent{
		ID:            uuid.NewString(),
		QuestionType:  qtype,
		QuestionText:  qtype + " question",
		Strategy:      strategy,
		ElementType:   types.ElementRadio,
		Confidence:    0.8,
		Outcome:       outcome,
		ExecutionTime: 0.1,
		Timestamp:     time.Now(),
	}
}

func TestArchiveTypeReport(t *testing.T) {
	a := newTestArchive(t)

	require.NoError(t, a.Record(archivedEvent("age", types.StrategyClick, types.OutcomeSuccess)))
	require.NoError(t, a.Record(archivedEvent("age", types.StrategyClick, types.OutcomeSuccess)))
	require.NoError(t, a.Record(archivedEvent("age", "", types.OutcomeManual)))
	require.NoError(t, a.Record(archivedEvent("gender", types.StrategyScript, types.OutcomeFailure)))

	report, err := a.TypeReport()
	require.NoError(t, err)
	require.Len(t, report, 2)

	// Ordered by volume, age first.
	assert.Equal(t, "age", report[0].QuestionType)
	assert.Equal(t, 3, report[0].Total)
	assert.Equal(t, 2, report[0].Automated)
	assert.Equal(t, 1, report[0].Manual)
	assert.Equal(t, 1, report[1].Failed)
}

func TestArchiveStrategyReportSkipsManualRows(t *testing.T) {
	a := newTestArchive(t)

	require.NoError(t, a.Record(archivedEvent("age", types.StrategyClick, types.OutcomeSuccess)))
	require.NoError(t, a.Record(archivedEvent("age", "", types.OutcomeManual)))

	report, err := a.StrategyReport()
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, string(types.StrategyClick), report[0].Strategy)
	assert.Equal(t, 1, report[0].Successes)
}

func TestArchiveIgnoresDuplicateIDs(t *testing.T) {
	a := newTestArchive(t)

	ev := archivedEvent("age", types.StrategyClick, types.OutcomeSuccess)
	require.NoError(t, a.Record(ev))
	require.NoError(t, a.Record(ev))

	report, err := a.TypeReport()
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, 1, report[0].Total)
}
