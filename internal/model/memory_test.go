package model

import (
	"errors"
	"testing"
)

func TestTierOrdering(t *testing.T) {
	if !(TierSTM.Rank() < TierITM.Rank() && TierITM.Rank() < TierLTM.Rank()) {
		t.Error("expected stm < itm < ltm ordering")
	}
	if Tier("bogus").Rank() != -1 {
		t.Error("unknown tier must rank -1")
	}
	if TierSTM.Next() != TierITM || TierITM.Next() != TierLTM {
		t.Error("unexpected promotion step")
	}
	if TierLTM.Next() != "" {
		t.Error("ltm is terminal")
	}
}

func TestValidateScores(t *testing.T) {
	if err := ValidateScores(0.5, 0.5); err != nil {
		t.Errorf("in-range scores rejected: %v", err)
	}
	if err := ValidateScores(-1, 0); err != nil {
		t.Errorf("boundary scores rejected: %v", err)
	}
	for _, c := range []struct{ ew, cs float64 }{
		{1.5, 0.5}, {-1.5, 0.5}, {0, -0.1}, {0, 1.1},
	} {
		err := ValidateScores(c.ew, c.cs)
		if !IsValidation(err) {
			t.Errorf("ValidateScores(%v, %v): expected validation error, got %v", c.ew, c.cs, err)
		}
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "confidence_score", Msg: "must be between 0 and 1"}
	if err.Error() != "invalid confidence_score: must be between 0 and 1" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if IsValidation(errors.New("other")) {
		t.Error("IsValidation must only match ValidationError")
	}
}
