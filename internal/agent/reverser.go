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
	codeBlockRe   = regexp.MustCompile("(?s)```(?:cpp|c\\+\\+)?\\s*\n(.*?)```")
	reversedTagRe = regexp.MustCompile(`REVERSED_FUNCTION:\s*(.+)`)
)

// Reverser gathers decompile context and asks the LLM to reverse a function.
// It keeps one conversation per function so fix rounds see earlier context.
type Reverser struct {
	llm     llm.Client
	backend backend.Backend

	conversationID string

	// LastPrompt and LastResponse are kept for round logging.
	LastPrompt   string
	LastResponse string
}

// NewReverser creates a reverser agent.
func NewReverser(client llm.Client, be backend.Backend) *Reverser {
	return &Reverser{llm: client, backend: be}
}

type reverserTaskData struct {
	ClassName     string
	FunctionName  string
	Address       string
	Decompiled    string
	Xrefs         string
	Structs       string
	SourceContext string
}

// Reverse produces a reversal attempt for the target. Returns the extracted
// code and the REVERSED_FUNCTION tag, which may be empty if the model omitted it.
func (r *Reverser) Reverse(ctx context.Context, target core.FunctionTarget) (code, tag string, err error) {
	dec, err := r.backend.Decompile(ctx, target.Address)
	if err != nil {
		return "", "", fmt.Errorf("decompile %s: %w", target.Address, err)
	}

	caps := r.backend.Capabilities(ctx)

	xrefsText := "None"
	if caps.HasXrefs {
		if xrefs, xerr := r.backend.XrefsFrom(ctx, target.Address); xerr != nil {
			xrefsText = "Unavailable"
		} else if len(xrefs) > 0 {
			var b strings.Builder
			for _, x := range xrefs {
				fmt.Fprintf(&b, "- %s (%s) [%s]\n", x.Name, x.Address, x.RefType)
			}
			xrefsText = strings.TrimRight(b.String(), "\n")
		} else {
			xrefsText = "None found"
		}
	}

	structsText := "None"
	if caps.HasStructs && target.ClassName != "" {
		if st, serr := r.backend.GetStruct(ctx, target.ClassName); serr != nil {
			structsText = "Unavailable"
		} else if st != nil {
			var b strings.Builder
			fmt.Fprintf(&b, "%s (size: %d)\n", st.Name, st.Size)
			for _, f := range st.Fields {
				fmt.Fprintf(&b, "  +0x%X %s %s (size: %d)\n", f.Offset, f.TypeStr, f.Name, f.Size)
			}
			structsText = strings.TrimRight(b.String(), "\n")
		}
	}

	systemPrompt, err := renderPrompt("reverser_system.md", nil)
	if err != nil {
		return "", "", err
	}
	taskPrompt, err := renderPrompt("reverser_task.md", reverserTaskData{
		ClassName:    target.ClassName,
		FunctionName: target.FunctionName,
		Address:      target.Address,
		Decompiled:   dec.RawOutput,
		Xrefs:        xrefsText,
		Structs:      structsText,
	})
	if err != nil {
		return "", "", err
	}

	if r.conversationID == "" {
		r.conversationID = r.llm.NewConversation(systemPrompt)
	}
	r.LastPrompt = taskPrompt

	logging.Agent("[reverser] reversing %s at %s", target.Symbol(), target.Address)
	response, err := r.llm.Resume(ctx, r.conversationID, taskPrompt)
	if err != nil {
		return "", "", fmt.Errorf("reverser completion: %w", err)
	}
	r.LastResponse = response

	return extractCode(response), extractTag(response), nil
}

type fixData struct {
	ClassName       string
	FunctionName    string
	Address         string
	CheckerReport   string
	Issues          string
	FixInstructions string
}

// Fix asks the reverser to repair its last attempt using checker feedback.
func (r *Reverser) Fix(ctx context.Context, target core.FunctionTarget, verdict *core.CheckerVerdict) (code, tag string, err error) {
	fixPrompt, err := renderPrompt("fix_instructions.md", fixData{
		ClassName:       target.ClassName,
		FunctionName:    target.FunctionName,
		Address:         target.Address,
		CheckerReport:   verdict.Summary,
		Issues:          bulletList(verdict.Issues),
		FixInstructions: bulletList(verdict.FixInstructions),
	})
	if err != nil {
		return "", "", err
	}

	r.LastPrompt = fixPrompt

	var response string
	if r.conversationID != "" {
		response, err = r.llm.Resume(ctx, r.conversationID, fixPrompt)
	} else {
		response, err = r.llm.Complete(ctx, fixPrompt)
	}
	if err != nil {
		return "", "", fmt.Errorf("fix completion: %w", err)
	}
	r.LastResponse = response

	return extractCode(response), extractTag(response), nil
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- none"
	}
	var b strings.Builder
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// extractCode pulls the first fenced code block out of a response, falling
// back to the whole response when the model skipped the fence.
func extractCode(response string) string {
	if m := codeBlockRe.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(response)
}

func extractTag(response string) string {
	if m := reversedTagRe.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
