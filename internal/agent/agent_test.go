package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dryxio/auto-re-agent/internal/backend"
	"github.com/Dryxio/auto-re-agent/internal/core"
	"github.com/Dryxio/auto-re-agent/internal/llm"
)

// scriptedLLM returns canned responses in order, looping on the last one.
type scriptedLLM struct {
	responses []string
	calls     int
	prompts   []string
}

func (s *scriptedLLM) next() string {
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	return s.responses[i]
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.next(), nil
}

func (s *scriptedLLM) CompleteWithSystem(_ context.Context, _, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.next(), nil
}

func (s *scriptedLLM) Send(_ context.Context, messages []llm.Message) (string, error) {
	s.prompts = append(s.prompts, messages[len(messages)-1].Content)
	return s.next(), nil
}

func (s *scriptedLLM) NewConversation(string) string { return "conv-1" }

func (s *scriptedLLM) Resume(_ context.Context, _ string, message string) (string, error) {
	s.prompts = append(s.prompts, message)
	return s.next(), nil
}

var testTarget = core.FunctionTarget{
	Address:      "006F86A0",
	ClassName:    "CTrain",
	FunctionName: "ProcessControl",
}

const passResponse = `Here is the reversal.

` + "```cpp" + `
void CTrain::ProcessControl() {
    UpdateSpeed();
}
` + "```" + `
REVERSED_FUNCTION: CTrain::ProcessControl
`

const checkerPass = `VERDICT: PASS
SUMMARY: Matches the decompilation.
ISSUES:
- none
FIX_INSTRUCTIONS:
- none
`

const checkerFail = `VERDICT: FAIL
SUMMARY: The reversal drops the wrap check.
ISSUES:
- missing distance wrap comparison
- wrong field name for path length
FIX_INSTRUCTIONS:
- subtract total path length when distance exceeds it
`

func TestReverserExtractsCodeAndTag(t *testing.T) {
	mock := &scriptedLLM{responses: []string{passResponse}}
	r := NewReverser(mock, backend.NewStub())

	code, tag, err := r.Reverse(context.Background(), testTarget)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if !strings.Contains(code, "UpdateSpeed()") {
		t.Errorf("code block not extracted: %q", code)
	}
	if strings.Contains(code, "```") {
		t.Errorf("fence leaked into code: %q", code)
	}
	if tag != "CTrain::ProcessControl" {
		t.Errorf("tag = %q", tag)
	}
	// Prompt should carry the target identity and decompiled output.
	if len(mock.prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(mock.prompts))
	}
	prompt := mock.prompts[0]
	for _, want := range []string{"CTrain::ProcessControl", "006F86A0", "CStub::StubFunction"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestReverserFallsBackToRawResponse(t *testing.T) {
	mock := &scriptedLLM{responses: []string{"void f() {}"}}
	r := NewReverser(mock, backend.NewStub())

	code, tag, err := r.Reverse(context.Background(), testTarget)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if code != "void f() {}" {
		t.Errorf("expected raw fallback, got %q", code)
	}
	if tag != "" {
		t.Errorf("expected empty tag, got %q", tag)
	}
}

func TestParseVerdict(t *testing.T) {
	v := parseVerdict(checkerFail)
	if v.Verdict != core.VerdictFail {
		t.Errorf("verdict = %s", v.Verdict)
	}
	if v.Summary != "The reversal drops the wrap check." {
		t.Errorf("summary = %q", v.Summary)
	}
	if len(v.Issues) != 2 {
		t.Fatalf("issues = %v", v.Issues)
	}
	if v.Issues[0] != "missing distance wrap comparison" {
		t.Errorf("issues[0] = %q", v.Issues[0])
	}
	if len(v.FixInstructions) != 1 {
		t.Errorf("fix instructions = %v", v.FixInstructions)
	}
}

func TestParseVerdictDropsNoneEntries(t *testing.T) {
	v := parseVerdict(checkerPass)
	if v.Verdict != core.VerdictPass {
		t.Errorf("verdict = %s", v.Verdict)
	}
	if len(v.Issues) != 0 || len(v.FixInstructions) != 0 {
		t.Errorf("none entries not dropped: %v / %v", v.Issues, v.FixInstructions)
	}
}

func TestParseVerdictMissingSections(t *testing.T) {
	v := parseVerdict("I am not sure about this one.")
	if v.Verdict != core.VerdictUnknown {
		t.Errorf("expected UNKNOWN, got %s", v.Verdict)
	}
}

func TestFixLoopPassesFirstRound(t *testing.T) {
	reverserLLM := &scriptedLLM{responses: []string{passResponse}}
	checkerLLM := &scriptedLLM{responses: []string{checkerPass}}

	result, err := RunFixLoop(context.Background(), testTarget, backend.NewStub(), reverserLLM, LoopOptions{
		MaxRounds:  4,
		CheckerLLM: checkerLLM,
	})
	if err != nil {
		t.Fatalf("RunFixLoop: %v", err)
	}
	if !result.Success || result.RoundsUsed != 1 {
		t.Errorf("success=%v rounds=%d", result.Success, result.RoundsUsed)
	}
	if result.CheckerVerdict.Verdict != core.VerdictPass {
		t.Errorf("verdict = %s", result.CheckerVerdict.Verdict)
	}
}

func TestFixLoopRecoversAfterFailure(t *testing.T) {
	reverserLLM := &scriptedLLM{responses: []string{passResponse, passResponse}}
	checkerLLM := &scriptedLLM{responses: []string{checkerFail, checkerPass}}

	result, err := RunFixLoop(context.Background(), testTarget, backend.NewStub(), reverserLLM, LoopOptions{
		MaxRounds:  4,
		CheckerLLM: checkerLLM,
	})
	if err != nil {
		t.Fatalf("RunFixLoop: %v", err)
	}
	if !result.Success || result.RoundsUsed != 2 {
		t.Errorf("success=%v rounds=%d", result.Success, result.RoundsUsed)
	}
	// The fix prompt must surface the checker's feedback.
	fixPrompt := reverserLLM.prompts[1]
	if !strings.Contains(fixPrompt, "missing distance wrap comparison") {
		t.Errorf("fix prompt missing checker issue: %q", fixPrompt)
	}
	if !strings.Contains(fixPrompt, "subtract total path length") {
		t.Errorf("fix prompt missing fix instruction: %q", fixPrompt)
	}
}

func TestFixLoopExhaustsRounds(t *testing.T) {
	reverserLLM := &scriptedLLM{responses: []string{passResponse}}
	checkerLLM := &scriptedLLM{responses: []string{checkerFail}}

	result, err := RunFixLoop(context.Background(), testTarget, backend.NewStub(), reverserLLM, LoopOptions{
		MaxRounds:  2,
		CheckerLLM: checkerLLM,
	})
	if err != nil {
		t.Fatalf("RunFixLoop: %v", err)
	}
	if result.Success {
		t.Error("expected failure after exhausting rounds")
	}
	if result.RoundsUsed != 2 {
		t.Errorf("rounds = %d", result.RoundsUsed)
	}
	if result.Code == "" {
		t.Error("last attempt code should be preserved")
	}
}

func TestFixLoopWritesRoundLogs(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "rounds")
	reverserLLM := &scriptedLLM{responses: []string{passResponse}}
	checkerLLM := &scriptedLLM{responses: []string{checkerPass}}

	if _, err := RunFixLoop(context.Background(), testTarget, backend.NewStub(), reverserLLM, LoopOptions{
		MaxRounds:  1,
		CheckerLLM: checkerLLM,
		LogDir:     logDir,
	}); err != nil {
		t.Fatalf("RunFixLoop: %v", err)
	}

	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("read log dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected reverser+checker logs, got %d files", len(entries))
	}
	var haveReverser, haveChecker bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "-reverser.json") {
			haveReverser = true
		}
		if strings.HasSuffix(e.Name(), "-checker.json") {
			haveChecker = true
		}
	}
	if !haveReverser || !haveChecker {
		t.Errorf("missing round logs: %v", entries)
	}
}
