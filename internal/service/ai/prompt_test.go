package ai

import (
	"strings"
	"testing"
	"time"

	"github.com/hongslab/aga-care/backend/internal/model/family"
)

func TestDaysOldExactlyOneDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := DaysOld("2026-03-09", now); got != 1 {
		t.Fatalf("expected 1 day, got %d", got)
	}
}

func TestDaysOldBirthToday(t *testing.T) {
	atMidnight := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := DaysOld("2026-03-10", atMidnight); got != 0 {
		t.Fatalf("expected 0 at midnight, got %d", got)
	}

	atNoon := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if got := DaysOld("2026-03-10", atNoon); got != 1 {
		t.Fatalf("expected ceiling 1 at noon, got %d", got)
	}
}

func TestDaysOldFutureBirthDateStaysNonNegative(t *testing.T) {
	// Absolute-value policy: a future-dated birth still counts days.
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := DaysOld("2026-03-13", now); got != 3 {
		t.Fatalf("expected 3 for future date, got %d", got)
	}
}

func TestDaysOldUnparseableDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := DaysOld("not-a-date", now); got != 0 {
		t.Fatalf("expected 0 for invalid date, got %d", got)
	}
}

func TestComposeSystemPromptSubstitutesPlaceholders(t *testing.T) {
	profile := family.BabyProfile{
		Name:        "아기",
		BirthDate:   "2026-03-01",
		FeedingType: family.FeedingMixed,
	}
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	got := ComposeSystemPrompt(profile, now)

	if strings.Contains(got, "{CURRENT_DATE}") || strings.Contains(got, "{BABY_BIRTHDATE}") ||
		strings.Contains(got, "{DAYS_OLD}") || strings.Contains(got, "{FEEDING_TYPE}") {
		t.Fatal("expected all placeholders to be substituted")
	}
	if !strings.Contains(got, "2026년 3월 10일") {
		t.Fatal("expected formatted current date")
	}
	if !strings.Contains(got, "생일 2026-03-01") {
		t.Fatal("expected birth date")
	}
	if !strings.Contains(got, "생후 10일차") {
		t.Fatal("expected computed day of life")
	}
	if !strings.Contains(got, "혼합 수유") {
		t.Fatal("expected feeding type label")
	}
}
