package agent

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify_Sentinels(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrParse, KindParse},
		{fmt.Errorf("wrapped: %w", ErrBlocked), KindBlocked},
		{ErrRejected, KindRejected},
		{ErrTimeout, KindTimeout},
		{ErrIO, KindIO},
		{ErrLLM, KindLLM},
		{ErrAbortByUser, KindAbortByUser},
		{ErrInternal, KindInternal},
	}
	for _, tc := range cases {
		got, ok := Classify(tc.err)
		if !ok || got != tc.want {
			t.Errorf("Classify(%v) = (%v, %v), want (%v, true)", tc.err, got, ok, tc.want)
		}
	}
}

func TestClassify_Unknown(t *testing.T) {
	if _, ok := Classify(errors.New("boom")); ok {
		t.Errorf("expected unclassified error")
	}
}

func TestClassifiedError_Unwrap(t *testing.T) {
	wrapped := Wrap(KindIO, "read_file", ErrIO)
	if !errors.Is(wrapped, ErrIO) {
		t.Errorf("expected errors.Is to see through ClassifiedError")
	}
}
