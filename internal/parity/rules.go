package parity

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Dryxio/auto-re-agent/internal/core"
	"github.com/Dryxio/auto-re-agent/internal/logging"
)

var manualCheckLineRe = regexp.MustCompile(`^\s*-\s*\[(?:x|X)\]\s*(0x[0-9a-fA-F]+)\b(.*)$`)

// ReadManualChecks parses a markdown checklist of manually-approved
// addresses. Only checked "- [x] 0xADDR note" lines count; everything else
// in the file is ignored. A missing file yields an empty map.
func ReadManualChecks(path string) (map[string]core.ManualCheckEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]core.ManualCheckEntry{}, nil
		}
		return nil, err
	}
	out := make(map[string]core.ManualCheckEntry)
	for lineNo, ln := range strings.Split(string(data), "\n") {
		m := manualCheckLineRe.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		addr := core.NormalizeAddress(m[1])
		note := strings.Trim(m[2], " -|")
		out[addr] = core.ManualCheckEntry{Line: lineNo + 1, Note: note}
	}
	return out, nil
}

type rulesFile struct {
	Rules []core.SemanticRule `json:"rules"`
}

// ReadSemanticRules loads semantic parity rules from a JSON file. Accepts
// either a bare list or an object with a top-level "rules" key. A missing
// file yields no rules; a malformed file is treated as empty with a warning
// so one bad edit does not block a batch run.
func ReadSemanticRules(path string) ([]core.SemanticRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var rules []core.SemanticRule
	if err := json.Unmarshal(data, &rules); err != nil {
		var obj rulesFile
		if err2 := json.Unmarshal(data, &obj); err2 != nil {
			logging.Parity("[rules] semantic rules parse failed (%s): %v", path, err)
			return nil, nil
		}
		rules = obj.Rules
	}

	for i := range rules {
		if rules[i].ID == "" {
			rules[i].ID = fmt.Sprintf("rule-%d", i+1)
		}
		if rules[i].Reason == "" {
			rules[i].Reason = fmt.Sprintf("Semantic parity rule '%s' failed", rules[i].ID)
		}
		switch strings.ToLower(rules[i].Severity) {
		case core.LevelYellow:
			rules[i].Severity = core.LevelYellow
		case core.LevelInfo:
			rules[i].Severity = core.LevelInfo
		default:
			rules[i].Severity = core.LevelRed
		}
		for j, a := range rules[i].Addresses {
			rules[i].Addresses[j] = core.NormalizeAddress(a)
		}
	}
	return rules, nil
}

// matchPattern treats "re:" prefixed patterns as regexes and everything
// else as a plain substring.
func matchPattern(text, pattern string) bool {
	if rest, ok := strings.CutPrefix(pattern, "re:"); ok {
		re, err := regexp.Compile(rest)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	return strings.Contains(text, pattern)
}

func ruleMatchesEntry(rule core.SemanticRule, entry core.HookEntry) bool {
	if len(rule.Addresses) > 0 {
		key := core.NormalizeAddress(entry.Address)
		found := false
		for _, a := range rule.Addresses {
			if a == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(rule.Symbols) == 0 {
		return true
	}
	for _, symPat := range rule.Symbols {
		if matchPattern(entry.Symbol(), symPat) {
			return true
		}
	}
	return false
}

// ApplySemanticRules evaluates rules against one function's source text.
// Each matching rule produces at most one finding.
func ApplySemanticRules(entry core.HookEntry, sourceText string, rules []core.SemanticRule) []core.Finding {
	var findings []core.Finding
	for _, rule := range rules {
		if !ruleMatchesEntry(rule, entry) {
			continue
		}
		fail := false
		for _, pat := range rule.SourceAllOf {
			if !matchPattern(sourceText, pat) {
				fail = true
				break
			}
		}
		if !fail && len(rule.SourceAnyOf) > 0 {
			any := false
			for _, pat := range rule.SourceAnyOf {
				if matchPattern(sourceText, pat) {
					any = true
					break
				}
			}
			fail = !any
		}
		if !fail {
			for _, pat := range rule.SourceNoneOf {
				if matchPattern(sourceText, pat) {
					fail = true
					break
				}
			}
		}
		if fail {
			findings = append(findings, core.Finding{
				Level:  rule.Severity,
				Reason: fmt.Sprintf("[semantic:%s] %s", rule.ID, rule.Reason),
			})
		}
	}
	return findings
}
