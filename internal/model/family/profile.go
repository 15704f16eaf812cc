package family

import "time"

// FeedingType enumerates how the baby is currently fed.
type FeedingType string

const (
	FeedingBreast  FeedingType = "breastfeeding"
	FeedingFormula FeedingType = "formula"
	FeedingMixed   FeedingType = "mixed"
)

// Valid reports whether the value is one of the known feeding types.
func (f FeedingType) Valid() bool {
	switch f {
	case FeedingBreast, FeedingFormula, FeedingMixed:
		return true
	}
	return false
}

// Label returns the display label used inside the assistant prompt.
func (f FeedingType) Label() string {
	switch f {
	case FeedingFormula:
		return "분유 수유"
	case FeedingMixed:
		return "혼합 수유"
	default:
		return "모유 수유"
	}
}

// BirthDateLayout is the calendar-date format stored in the shared document.
const BirthDateLayout = "2006-01-02"

// BabyProfile is the mutable profile embedded in the shared document.
// Any participant may edit it; edits race at field granularity.
type BabyProfile struct {
	Name        string      `json:"name"`
	BirthDate   string      `json:"birthDate"`
	FeedingType FeedingType `json:"feedingType"`
}

// DefaultProfile is the placeholder profile used until a participant
// edits it: unnamed baby, born "today", breastfeeding.
func DefaultProfile(now time.Time) BabyProfile {
	return BabyProfile{
		Name:        "아기",
		BirthDate:   now.Format(BirthDateLayout),
		FeedingType: FeedingBreast,
	}
}

// Validate checks the profile fields that the backend actually relies on.
func (p BabyProfile) Validate() error {
	if _, err := time.Parse(BirthDateLayout, p.BirthDate); err != nil {
		return err
	}
	if !p.FeedingType.Valid() {
		return ErrInvalidFeedingType
	}
	return nil
}
