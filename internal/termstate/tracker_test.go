package termstate

import (
	"testing"
)

func TestTracker_CommandExecutionLifecycleAndHistoryCap(t *testing.T) {
	tr := NewTracker()
	tr.Register("s1", SessionLocal, "/home/me")

	for i := 0; i < MaxExecutionHistory+5; i++ {
		tr.StartCommandExecution("s1", "echo hi")
		tr.AppendOutput("s1", "hi\n")
		tr.CompleteCommandExecution("s1", 0)
	}

	st, ok := tr.Get("s1")
	if !ok {
		t.Fatal("session not found")
	}
	if len(st.ExecutionHistory) != MaxExecutionHistory {
		t.Errorf("history len = %d, want %d", len(st.ExecutionHistory), MaxExecutionHistory)
	}
	if st.CurrentExecution != nil {
		t.Errorf("expected no in-flight execution after completion")
	}
}

func TestTracker_AppendOutput_Truncates(t *testing.T) {
	tr := NewTracker()
	tr.Register("s1", SessionLocal, "/home/me")
	tr.StartCommandExecution("s1", "yes")

	big := make([]byte, MaxOutputChars*2)
	for i := range big {
		big[i] = 'x'
	}
	tr.AppendOutput("s1", string(big))

	st, _ := tr.Get("s1")
	if len(st.CurrentExecution.Output) > MaxOutputChars {
		t.Errorf("output not truncated: len=%d", len(st.CurrentExecution.Output))
	}
}
