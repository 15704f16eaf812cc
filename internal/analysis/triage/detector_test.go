package triage

import "testing"

func TestDetectFeverThreshold(t *testing.T) {
	if !Detect("아기 체온이 38.0이에요") {
		t.Fatal("expected fever threshold to trigger")
	}
	if !Detect("체온 39도 넘었어요") {
		t.Fatal("expected 39도 to trigger")
	}
}

func TestDetectSeizureTerm(t *testing.T) {
	if !Detect("방금 경련을 일으켰어요") {
		t.Fatal("expected 경련 to trigger")
	}
}

func TestDetectASCIICaseInsensitive(t *testing.T) {
	if !Detect("I think she had a SEIZURE just now") {
		t.Fatal("expected uppercase ASCII keyword to trigger")
	}
	if !Detect("baby looks Limp and sleepy") {
		t.Fatal("expected mixed-case ASCII keyword to trigger")
	}
}

func TestDetectNoKeyword(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"딸꾹질은 왜 하나요?",
		"수유텀이 궁금해요",
		"37.2 정도면 괜찮을까요",
	}
	for _, input := range cases {
		if Detect(input) {
			t.Fatalf("expected no trigger for %q", input)
		}
	}
}

func TestDetectInsideLongerSentence(t *testing.T) {
	// Substring-level matching is intentional: negations still trigger.
	if !Detect("호흡곤란은 아닌 것 같은데 확인 부탁해요") {
		t.Fatal("expected substring match inside negated sentence")
	}
}
