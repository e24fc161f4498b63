package chunk

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/soundbluemusic/dictgen/internal/entry"
	"github.com/soundbluemusic/dictgen/internal/errors"
)

func ids(entries []entry.Entry) []string {
	return entry.IDs(entries)
}

func TestAlphabetical_KoreanCollation(t *testing.T) {
	input := []entry.Entry{
		{ID: "da", Korean: "다리"},
		{ID: "ga", Korean: "가방"},
		{ID: "na", Korean: "나무"},
	}

	got := Alphabetical().Order(input)
	if diff := cmp.Diff([]string{"ga", "na", "da"}, ids(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if input[0].ID != "da" {
		t.Error("Order must not modify its input")
	}
}

func TestAlphabetical_NotByteOrder(t *testing.T) {
	// Decomposed 다 (U+1103 U+1161) is byte-smaller than precomposed 가 but collates after it.
	input := []entry.Entry{
		{ID: "decomposed-da", Korean: "\u1103\u1161"},
		{ID: "ga", Korean: "가"},
	}
	got := Alphabetical().Order(input)
	if diff := cmp.Diff([]string{"ga", "decomposed-da"}, ids(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	// Fullwidth ａ is byte-larger than b but collates before it.
	input = []entry.Entry{
		{ID: "b", Korean: "banana"},
		{ID: "fw-a", Korean: "\uff41pple"},
	}
	got = Alphabetical().Order(input)
	if diff := cmp.Diff([]string{"fw-a", "b"}, ids(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestAlphabetical_TieBreakByID(t *testing.T) {
	input := []entry.Entry{
		{ID: "z", Korean: "사과"},
		{ID: "a", Korean: "사과"},
		{ID: "m", Korean: "사과"},
	}
	got := Alphabetical().Order(input)
	if diff := cmp.Diff([]string{"a", "m", "z"}, ids(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestByCategory(t *testing.T) {
	input := []entry.Entry{
		{ID: "1", Korean: "사과", CategoryID: "food"},
		{ID: "2", Korean: "안녕", CategoryID: "greetings"},
		{ID: "3", Korean: "김치", CategoryID: "food"},
		{ID: "4", Korean: "고양이", CategoryID: "animals"},
	}
	got := ByCategory().Order(input)
	if diff := cmp.Diff([]string{"4", "3", "1", "2"}, ids(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRecent(t *testing.T) {
	input := []entry.Entry{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	got := Recent().Order(input)
	if diff := cmp.Diff([]string{"c", "b", "a"}, ids(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestStrategiesByName(t *testing.T) {
	got, err := StrategiesByName(nil)
	if err != nil {
		t.Fatalf("StrategiesByName(nil) error = %v", err)
	}
	if diff := cmp.Diff([]string{SortAlphabetical, SortCategory, SortRecent}, StrategyNames(got)); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}

	got, err = StrategiesByName([]string{"recent"})
	if err != nil || len(got) != 1 || got[0].Name != SortRecent {
		t.Errorf("StrategiesByName(recent) = %v, %v", StrategyNames(got), err)
	}

	if _, err := StrategiesByName([]string{"random"}); !errors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("StrategiesByName(random) error = %v, want INVALID_CONFIG", err)
	}
}
