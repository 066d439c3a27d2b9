package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Dryxio/auto-re-agent/internal/backend"
	"github.com/Dryxio/auto-re-agent/internal/core"
	"github.com/Dryxio/auto-re-agent/internal/llm"
	"github.com/Dryxio/auto-re-agent/internal/logging"
)

var (
	verdictRe = regexp.MustCompile(`(?i)VERDICT:\s*(PASS|FAIL)`)
	summaryRe = regexp.MustCompile(`SUMMARY:\s*(.+)`)
	issuesRe  = regexp.MustCompile(`(?i)ISSUES:\s*\n((?:\s*-\s*.+\n?)+)`)
	fixRe     = regexp.MustCompile(`(?i)FIX_INSTRUCTIONS:\s*\n((?:\s*-\s*.+\n?)+)`)
)

// Checker verifies reversed code against the decompiler output.
type Checker struct {
	llm     llm.Client
	backend backend.Backend

	conversationID string

	LastPrompt   string
	LastResponse string
}

// NewChecker creates a checker agent.
func NewChecker(client llm.Client, be backend.Backend) *Checker {
	return &Checker{llm: client, backend: be}
}

type checkerTaskData struct {
	ClassName    string
	FunctionName string
	Address      string
	ReversedCode string
	Decompiled   string
}

// Check compares code against the decompilation of target and returns a
// structured verdict. A response without a VERDICT line yields VerdictUnknown.
func (c *Checker) Check(ctx context.Context, code string, target core.FunctionTarget) (*core.CheckerVerdict, error) {
	dec, err := c.backend.Decompile(ctx, target.Address)
	if err != nil {
		return nil, fmt.Errorf("decompile %s: %w", target.Address, err)
	}

	systemPrompt, err := renderPrompt("checker_system.md", nil)
	if err != nil {
		return nil, err
	}
	taskPrompt, err := renderPrompt("checker_task.md", checkerTaskData{
		ClassName:    target.ClassName,
		FunctionName: target.FunctionName,
		Address:      target.Address,
		ReversedCode: code,
		Decompiled:   dec.RawOutput,
	})
	if err != nil {
		return nil, err
	}

	if c.conversationID == "" {
		c.conversationID = c.llm.NewConversation(systemPrompt)
	}
	c.LastPrompt = taskPrompt

	response, err := c.llm.Resume(ctx, c.conversationID, taskPrompt)
	if err != nil {
		return nil, fmt.Errorf("checker completion: %w", err)
	}
	c.LastResponse = response

	verdict := parseVerdict(response)
	logging.Agent("[checker] %s -> %s (%d issues)", target.Symbol(), verdict.Verdict, len(verdict.Issues))
	return verdict, nil
}

func parseVerdict(response string) *core.CheckerVerdict {
	v := &core.CheckerVerdict{Verdict: core.VerdictUnknown}

	if m := verdictRe.FindStringSubmatch(response); m != nil {
		if strings.EqualFold(m[1], "PASS") {
			v.Verdict = core.VerdictPass
		} else {
			v.Verdict = core.VerdictFail
		}
	}
	if m := summaryRe.FindStringSubmatch(response); m != nil {
		v.Summary = strings.TrimSpace(m[1])
	}
	if m := issuesRe.FindStringSubmatch(response); m != nil {
		v.Issues = parseBullets(m[1])
	}
	if m := fixRe.FindStringSubmatch(response); m != nil {
		v.FixInstructions = parseBullets(m[1])
	}
	return v
}

// parseBullets splits "- item" lines, dropping empty and "none" entries.
func parseBullets(block string) []string {
	var items []string
	for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
		item := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if item == "" || strings.EqualFold(item, "none") {
			continue
		}
		items = append(items, item)
	}
	return items
}
