// Package cpptext provides lexical analysis helpers for C++ source bodies
// and x86 assembly listings: comment stripping, call and control-flow
// counting, and floating-point sensitivity detection.
package cpptext

import (
	"regexp"
	"strings"
)

var (
	commentBlockRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	commentLineRe  = regexp.MustCompile(`//.*`)
	// Allows an optional template argument list between the callee and the
	// open paren, so plugin::CallMethod<0x6F5900, CTrain*>(this) counts.
	tokenCallRe   = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_:]*)\s*(?:<[^<>()]*>)?\s*\(`)
	controlFlowRe = regexp.MustCompile(`\b(if|for|while|switch|do|goto)\b`)
	asmLineRe     = regexp.MustCompile(`^[0-9a-fA-F]{8}\s+([A-Z]+)`)
)

// cppKeywords are tokens followed by "(" that are not function calls.
var cppKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true,
	"return": true, "sizeof": true, "alignof": true, "decltype": true,
	"static_cast": true, "reinterpret_cast": true, "const_cast": true,
	"dynamic_cast": true, "catch": true, "new": true, "delete": true,
}

// fpSourceTokens are math tokens indicating floating-point work in source.
var fpSourceTokens = []string{
	"std::sin", "std::cos", "std::tan", "std::sqrt", "std::pow",
	"std::asin", "std::acos", "std::atan", "std::atan2", "std::fabs",
	"std::abs", "std::ceil", "std::floor", "std::isnan", "std::isfinite",
	"std::copysign",
	"sin(", "cos(", "sqrt(", "atan2(", "fabs(",
}

// fpAsmPrefixes are x87 opcode prefixes considered floating-point sensitive.
var fpAsmPrefixes = []string{
	"FCOM", "FUCOM", "FSIN", "FCOS", "FPTAN", "FPATAN", "FSQRT",
	"FDIV", "FMUL", "FADD", "FSUB", "FABS", "FRNDINT", "FNSTSW",
}

// StripComments removes block and line comments from C++ source.
func StripComments(text string) string {
	return commentLineRe.ReplaceAllString(commentBlockRe.ReplaceAllString(text, ""), "")
}

// CountCalls counts function calls in comment-stripped C++ source,
// returning (total, stub, nonStub) where stub calls are those whose callee
// starts with stubCallPrefix.
func CountCalls(bodyNoComments, stubCallPrefix string) (total, stub, nonStub int) {
	for _, m := range tokenCallRe.FindAllStringSubmatch(bodyNoComments, -1) {
		tok := m[1]
		if cppKeywords[tok] {
			continue
		}
		if tok == "operator" || strings.HasSuffix(tok, "::operator") {
			continue
		}
		total++
		if strings.HasPrefix(tok, stubCallPrefix) {
			stub++
		} else {
			nonStub++
		}
	}
	return total, stub, nonStub
}

// CountControlFlow counts control-flow keywords in comment-stripped source.
func CountControlFlow(bodyNoComments string) int {
	return len(controlFlowRe.FindAllString(bodyNoComments, -1))
}

// HasFPToken reports whether the text contains floating-point math tokens.
func HasFPToken(text string) bool {
	for _, tok := range fpSourceTokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}

// ParseAsmLineOp extracts the opcode from an assembly listing line of the
// form "XXXXXXXX  OPCODE ...". Returns "" if the line does not match.
func ParseAsmLineOp(line string) string {
	if m := asmLineRe.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return ""
}

// HasFPAsm reports whether an assembly listing contains floating-point
// sensitive opcodes.
func HasFPAsm(instructions string) bool {
	for _, line := range strings.Split(instructions, "\n") {
		op := ParseAsmLineOp(line)
		if op == "" {
			continue
		}
		for _, prefix := range fpAsmPrefixes {
			if strings.HasPrefix(op, prefix) {
				return true
			}
		}
	}
	return false
}
