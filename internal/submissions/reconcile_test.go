package submissions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func float64Ptr(f float64) *float64 {
	return &f
}

func placeholderFor(id string) Submission {
	return Submission{ID: id, CorrelationID: id, ContestID: "c1", Status: boolPtr(false), Phase: PhasePlaceholder}
}

func TestConfirmReplacesPlaceholderInPlace(t *testing.T) {
	list, ok := insertPlaceholder([]Submission{{ID: "old", Phase: PhaseConfirmed}}, placeholderFor("tmp-1"))
	require.True(t, ok)
	require.Equal(t, "tmp-1", list[0].ID)

	list, ok = confirm(list, "tmp-1", Submission{ID: "s-1", ContestID: "c1", Score: float64Ptr(10)})
	require.True(t, ok)
	require.Len(t, list, 2)
	require.Equal(t, "s-1", list[0].ID)
	require.Equal(t, "tmp-1", list[0].CorrelationID)
	require.Equal(t, PhaseConfirmed, list[0].Phase)
	require.Equal(t, "old", list[1].ID)
}

func TestInsertPlaceholderRejectsDuplicateCorrelation(t *testing.T) {
	list, ok := insertPlaceholder(nil, placeholderFor("tmp-1"))
	require.True(t, ok)

	_, ok = insertPlaceholder(list, placeholderFor("tmp-1"))
	require.False(t, ok)
}

func TestConfirmAfterFetchKeepsSingleEntry(t *testing.T) {
	list, _ := insertPlaceholder(nil, placeholderFor("tmp-1"))

	// The confirmed record arrives through a fetch before the submit returns.
	record := Submission{ID: "s-1", CorrelationID: "tmp-1", ContestID: "c1"}
	list = merge(list, []Submission{record})
	require.Len(t, list, 1)

	list, ok := confirm(list, "tmp-1", record)
	require.True(t, ok)
	require.Len(t, list, 1)
	require.Equal(t, "s-1", list[0].ID)
}

func TestConfirmDropsPlaceholderWhenRecordAlreadyPresent(t *testing.T) {
	list, _ := insertPlaceholder([]Submission{{ID: "s-1", Phase: PhaseConfirmed}}, placeholderFor("tmp-1"))

	list, ok := confirm(list, "tmp-1", Submission{ID: "s-1", Score: float64Ptr(50)})
	require.True(t, ok)
	require.Len(t, list, 1)
	require.Equal(t, "s-1", list[0].ID)
	require.Equal(t, 50.0, *list[0].Score)
}

func TestConfirmUnknownCorrelationIsNoop(t *testing.T) {
	list := []Submission{{ID: "s-1", Phase: PhaseConfirmed}}
	out, ok := confirm(list, "tmp-x", Submission{ID: "s-2"})
	require.False(t, ok)
	require.Equal(t, list, out)
}

func TestFailKeepsEntryWithError(t *testing.T) {
	list, _ := insertPlaceholder(nil, placeholderFor("tmp-1"))

	list, ok := fail(list, "tmp-1", "compilation backend unavailable")
	require.True(t, ok)
	require.Len(t, list, 1)
	require.Equal(t, PhaseFailed, list[0].Phase)
	require.Equal(t, "compilation backend unavailable", list[0].Error)
	require.True(t, list[0].Failed())

	// A failed entry is not pending reconciliation any more.
	_, ok = fail(list, "tmp-1", "again")
	require.False(t, ok)
}

func TestMergeKeepsUnknownLocalEntries(t *testing.T) {
	local := []Submission{
		placeholderFor("tmp-1"),
		{ID: "tmp-2", CorrelationID: "tmp-2", Phase: PhaseFailed, Error: "boom"},
		{ID: "s-stale", Phase: PhaseConfirmed},
	}
	server := []Submission{
		{ID: "s-1", CreatedAt: time.Unix(10, 0)},
		{ID: "s-2", CreatedAt: time.Unix(20, 0)},
	}

	out := merge(local, server)
	require.Len(t, out, 4)
	require.Equal(t, "tmp-1", out[0].ID)
	require.Equal(t, "tmp-2", out[1].ID)
	require.Equal(t, "s-1", out[2].ID)
	require.Equal(t, PhaseConfirmed, out[2].Phase)
}

func TestApplyVerdict(t *testing.T) {
	list := []Submission{placeholderFor("tmp-1"), {ID: "s-1", Phase: PhaseConfirmed}}

	list, ok := applyVerdict(list, Verdict{SubmissionID: "s-1", Status: boolPtr(true), Score: float64Ptr(100)})
	require.True(t, ok)
	require.True(t, list[1].Passed())

	_, ok = applyVerdict(list, Verdict{SubmissionID: "s-1", Status: boolPtr(true), Score: float64Ptr(100)})
	require.False(t, ok, "identical verdict changes nothing")

	_, ok = applyVerdict(list, Verdict{SubmissionID: "tmp-1", Status: boolPtr(true)})
	require.False(t, ok, "placeholders never receive verdicts")

	_, ok = applyVerdict(list, Verdict{SubmissionID: "unknown", Status: boolPtr(true)})
	require.False(t, ok)
}
