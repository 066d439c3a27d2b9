// Package parity implements static parity triage: it compares reimplemented
// C++ source bodies against decompiler evidence and flags likely stubs,
// mismatches, and functions needing a manual look.
package parity

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/Dryxio/auto-re-agent/internal/config"
	"github.com/Dryxio/auto-re-agent/internal/core"
	"github.com/Dryxio/auto-re-agent/internal/cpptext"
	"github.com/Dryxio/auto-re-agent/internal/logging"
)

var funcTokenRe = regexp.MustCompile(`([A-Za-z_~][A-Za-z0-9_]*)::([A-Za-z_~][A-Za-z0-9_]*)\s*\(`)

type tokenLoc struct {
	path string
	off  int
}

type tokenKey struct {
	class string
	fn    string
}

// SourceIndexer indexes a C++ source tree and locates function bodies by
// Class::Function name or by hook-install address.
//
// Two complementary strategies feed the index: plain Class::Function( token
// scanning, and profile hook patterns that associate addresses with function
// names via hook-install macros like RH_ScopedInstall(Func, 0xAddr).
type SourceIndexer struct {
	sourceRoot     string
	stubMarkers    []string
	stubCallPrefix string
	hookPatterns   []*regexp.Regexp
	classMacroRe   *regexp.Regexp

	sourceFiles []string

	mu            sync.Mutex
	fileTextCache map[string]string
	tokenIndex    map[tokenKey][]tokenLoc
	// address -> (class, fn) from hook-install macros
	hookAddressIndex map[string][2]string
	lookupCache      map[tokenKey]*core.SourceMatch
	freeLookupCache  map[string]*core.SourceMatch
}

// NewSourceIndexer builds the token and hook-address indexes for the tree
// rooted at sourceRoot. Unreadable files are skipped.
func NewSourceIndexer(sourceRoot string, profile config.ProfileConfig) (*SourceIndexer, error) {
	extensions := profile.SourceExtensions
	if len(extensions) == 0 {
		extensions = []string{".cpp", ".h", ".hpp"}
	}
	stubMarkers := profile.StubMarkers
	if len(stubMarkers) == 0 {
		stubMarkers = []string{"NOTSA_UNREACHABLE"}
	}
	stubCallPrefix := profile.StubCallPrefix
	if stubCallPrefix == "" {
		stubCallPrefix = "plugin::Call"
	}

	idx := &SourceIndexer{
		sourceRoot:       sourceRoot,
		stubMarkers:      stubMarkers,
		stubCallPrefix:   stubCallPrefix,
		fileTextCache:    make(map[string]string),
		tokenIndex:       make(map[tokenKey][]tokenLoc),
		hookAddressIndex: make(map[string][2]string),
		lookupCache:      make(map[tokenKey]*core.SourceMatch),
		freeLookupCache:  make(map[string]*core.SourceMatch),
	}

	for _, pat := range profile.HookPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			logging.Parity("[indexer] skipping invalid hook pattern %q: %v", pat, err)
			continue
		}
		idx.hookPatterns = append(idx.hookPatterns, re)
	}
	if profile.ClassMacro != "" {
		re, err := regexp.Compile(regexp.QuoteMeta(profile.ClassMacro) + `\s*\(\s*(\w+)\s*\)`)
		if err == nil {
			idx.classMacroRe = re
		}
	}

	extSet := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		extSet[e] = true
	}
	err := filepath.WalkDir(sourceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if extSet[filepath.Ext(path)] {
			idx.sourceFiles = append(idx.sourceFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(idx.sourceFiles)

	idx.buildIndex()
	logging.Parity("[indexer] indexed %d files, %d symbols, %d hook addresses",
		len(idx.sourceFiles), len(idx.tokenIndex), len(idx.hookAddressIndex))
	return idx, nil
}

func (s *SourceIndexer) readText(path string) string {
	if txt, ok := s.fileTextCache[path]; ok {
		return txt
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.fileTextCache[path] = ""
		return ""
	}
	txt := string(data)
	s.fileTextCache[path] = txt
	return txt
}

func (s *SourceIndexer) buildIndex() {
	for _, path := range s.sourceFiles {
		txt := s.readText(path)
		for _, m := range funcTokenRe.FindAllStringSubmatchIndex(txt, -1) {
			key := tokenKey{class: txt[m[2]:m[3]], fn: txt[m[4]:m[5]]}
			s.tokenIndex[key] = append(s.tokenIndex[key], tokenLoc{path: path, off: m[0]})
		}
		if len(s.hookPatterns) == 0 {
			continue
		}
		// Class comes from the file's class macro (e.g. RH_ScopedClass).
		fileClass := ""
		if s.classMacroRe != nil {
			if cm := s.classMacroRe.FindStringSubmatch(txt); cm != nil {
				fileClass = cm[1]
			}
		}
		for _, hp := range s.hookPatterns {
			for _, hm := range hp.FindAllStringSubmatch(txt, -1) {
				if len(hm) < 3 {
					continue
				}
				fn := strings.TrimSpace(hm[1])
				addr := strings.ToLower(strings.TrimSpace(hm[2]))
				if fn != "" && addr != "" {
					s.hookAddressIndex[addr] = [2]string{fileClass, fn}
				}
			}
		}
	}
}

// Find locates a function body by class and function name. Lookups are
// cached, including misses. A nil return means no definition was found.
func (s *SourceIndexer) Find(className, fnName string) *core.SourceMatch {
	if fnName == "" && className == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(className, fnName)
}

func (s *SourceIndexer) findLocked(className, fnName string) *core.SourceMatch {
	key := tokenKey{class: className, fn: fnName}
	if sm, ok := s.lookupCache[key]; ok {
		return sm
	}
	if fnName == "" {
		s.lookupCache[key] = nil
		return nil
	}
	for _, ck := range candidateKeys(className, fnName) {
		for _, loc := range s.tokenIndex[ck] {
			txt := s.readText(loc.path)
			fnStart := loc.off + len(ck.class) + 2
			openBrace := findFunctionBodyOpen(txt, fnStart, ck.fn)
			if openBrace < 0 {
				continue
			}
			closeBrace := findMatchingBrace(txt, openBrace)
			if closeBrace < 0 {
				continue
			}
			sm := s.makeSourceMatch(loc.path, txt, loc.off, openBrace, closeBrace)
			s.lookupCache[key] = sm
			return sm
		}
	}
	if free := s.findFreeFunctionLocked(fnName); free != nil {
		s.lookupCache[key] = free
		return free
	}
	s.lookupCache[key] = nil
	return nil
}

// FindByAddress resolves a hook address through the hook-address index and
// then looks up the body by name. Returns nil for unknown addresses.
func (s *SourceIndexer) FindByAddress(address string) *core.SourceMatch {
	addrKey := strings.ToLower(strings.TrimSpace(address))
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.hookAddressIndex[addrKey]
	if !ok || entry[1] == "" {
		return nil
	}
	return s.findLocked(entry[0], entry[1])
}

func (s *SourceIndexer) findFreeFunctionLocked(fnName string) *core.SourceMatch {
	if fnName == "" {
		return nil
	}
	if sm, ok := s.freeLookupCache[fnName]; ok {
		return sm
	}
	pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(fnName) + `\s*\(`)
	if err != nil {
		s.freeLookupCache[fnName] = nil
		return nil
	}
	for _, path := range s.sourceFiles {
		txt := s.readText(path)
		for _, m := range pattern.FindAllStringIndex(txt, -1) {
			idx := m[0]
			// Skip qualified Class::fn occurrences; those belong to the
			// token index.
			if idx >= 2 && txt[idx-2:idx] == "::" {
				continue
			}
			openBrace := isFreeFunctionDefinition(txt, idx, fnName)
			if openBrace < 0 {
				continue
			}
			closeBrace := findMatchingBrace(txt, openBrace)
			if closeBrace < 0 {
				continue
			}
			sm := s.makeSourceMatch(path, txt, idx, openBrace, closeBrace)
			s.freeLookupCache[fnName] = sm
			return sm
		}
	}
	s.freeLookupCache[fnName] = nil
	return nil
}

func (s *SourceIndexer) makeSourceMatch(path, txt string, idx, openBrace, closeBrace int) *core.SourceMatch {
	body := txt[openBrace : closeBrace+1]
	bodyNC := cpptext.StripComments(body)
	total, stub, nonStub := cpptext.CountCalls(bodyNC, s.stubCallPrefix)
	hasMarker := false
	for _, marker := range s.stubMarkers {
		if strings.Contains(bodyNC, marker) {
			hasMarker = true
			break
		}
	}
	return &core.SourceMatch{
		Path:                      path,
		Line:                      strings.Count(txt[:idx], "\n") + 1,
		Body:                      body,
		BodyNoComments:            bodyNC,
		BodyLines:                 strings.Count(body, "\n") + 1,
		CallCount:                 total,
		PluginCallCount:           stub,
		NonPluginCallCount:        nonStub,
		ControlFlowCount:          cpptext.CountControlFlow(bodyNC),
		HasStubMarker:             hasMarker,
		HasFPToken:                cpptext.HasFPToken(bodyNC),
		IsInlineInternalForwarder: isInlineInternalForwarder(bodyNC),
	}
}

var identPrefixRe = regexp.MustCompile(`^[A-Za-z_~][A-Za-z0-9_~]*`)

// candidateKeys expands a lookup into the keys worth trying: the exact name,
// its identifier prefix when the name carries a suffix, and ctor/dtor forms
// for the synthetic Constructor/Destructor names used by hook registries.
func candidateKeys(className, fnName string) []tokenKey {
	keys := []tokenKey{{class: className, fn: fnName}}
	if m := identPrefixRe.FindString(fnName); m != "" && m != fnName {
		keys = append(keys, tokenKey{class: className, fn: m})
	}
	if strings.HasPrefix(fnName, "Constructor") {
		keys = append([]tokenKey{{class: className, fn: className}}, keys...)
	} else if strings.HasPrefix(fnName, "Destructor") {
		keys = append([]tokenKey{{class: className, fn: "~" + className}}, keys...)
	}
	seen := make(map[tokenKey]bool, len(keys))
	uniq := keys[:0]
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		uniq = append(uniq, k)
	}
	return uniq
}

// isInlineInternalForwarder reports whether a body is a one-statement
// forwarder to an internal I_* implementation, e.g.
// { return I_UpdateSpeed<false>(); }.
func isInlineInternalForwarder(bodyNoComments string) bool {
	s := strings.TrimSpace(bodyNoComments)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return false
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return false
	}
	inner = strings.TrimSpace(strings.TrimPrefix(inner, "return "))
	if !strings.HasSuffix(inner, ";") {
		return false
	}
	inner = strings.TrimSpace(strings.TrimSuffix(inner, ";"))
	if inner == "" || !strings.HasSuffix(inner, ")") {
		return false
	}
	openIdx := strings.Index(inner, "(")
	if openIdx <= 0 {
		return false
	}
	callee := strings.TrimSpace(inner[:openIdx])
	depth := 0
	for _, ch := range inner[openIdx:] {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	if depth != 0 {
		return false
	}
	calleeBase := strings.TrimPrefix(callee, "this->")
	if i := strings.LastIndex(calleeBase, "::"); i >= 0 {
		calleeBase = calleeBase[i+2:]
	}
	if i := strings.Index(calleeBase, "<"); i >= 0 {
		calleeBase = calleeBase[:i]
	}
	if strings.HasPrefix(calleeBase, "I_") {
		return true
	}
	return strings.Contains(callee, "<") &&
		len(calleeBase) > 1 &&
		calleeBase[0] == 'I' &&
		calleeBase[1] >= 'A' && calleeBase[1] <= 'Z'
}

// findMatchingBrace returns the index of the brace closing the one at
// openBraceIdx, tracking strings and comments. Returns -1 when unbalanced.
func findMatchingBrace(text string, openBraceIdx int) int {
	return findMatchingDelim(text, openBraceIdx, '{', '}')
}

func findMatchingParen(text string, openParenIdx int) int {
	return findMatchingDelim(text, openParenIdx, '(', ')')
}

func findMatchingDelim(text string, start int, open, close byte) int {
	depth := 0
	inStr := false
	var strQuote byte
	inSLComment := false
	inMLComment := false
	escaped := false
	n := len(text)
	for i := start; i < n; i++ {
		ch := text[i]
		var nxt byte
		if i+1 < n {
			nxt = text[i+1]
		}
		switch {
		case inSLComment:
			if ch == '\n' {
				inSLComment = false
			}
		case inMLComment:
			if ch == '*' && nxt == '/' {
				inMLComment = false
				i++
			}
		case inStr:
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == strQuote {
				inStr = false
			}
		case ch == '/' && nxt == '/':
			inSLComment = true
			i++
		case ch == '/' && nxt == '*':
			inMLComment = true
			i++
		case ch == '\'' || ch == '"':
			inStr = true
			strQuote = ch
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func skipWS(text string, idx int) int {
	for idx < len(text) && isSpace(text[idx]) {
		idx++
	}
	return idx
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func startsWithWord(text string, idx int, word string) bool {
	if !strings.HasPrefix(text[idx:], word) {
		return false
	}
	if idx > 0 && isWordChar(text[idx-1]) {
		return false
	}
	end := idx + len(word)
	return end >= len(text) || !isWordChar(text[end])
}

// findFunctionBodyOpen walks from a function-name occurrence at fnIdx past
// the parameter list, trailing qualifiers (const, override, final,
// noexcept(...)), a trailing return type, and a constructor initializer
// list, and returns the index of the body's opening brace. Returns -1 for
// declarations and non-definitions.
func findFunctionBodyOpen(txt string, fnIdx int, fnName string) int {
	parenOpen := skipWS(txt, fnIdx+len(fnName))
	if parenOpen >= len(txt) || txt[parenOpen] != '(' {
		return -1
	}
	parenClose := findMatchingParen(txt, parenOpen)
	if parenClose < 0 {
		return -1
	}
	k := skipWS(txt, parenClose+1)
	for {
		switch {
		case startsWithWord(txt, k, "const"):
			k = skipWS(txt, k+len("const"))
			continue
		case startsWithWord(txt, k, "override"):
			k = skipWS(txt, k+len("override"))
			continue
		case startsWithWord(txt, k, "final"):
			k = skipWS(txt, k+len("final"))
			continue
		case startsWithWord(txt, k, "noexcept"):
			k = skipWS(txt, k+len("noexcept"))
			if k < len(txt) && txt[k] == '(' {
				nclose := findMatchingParen(txt, k)
				if nclose < 0 {
					return -1
				}
				k = skipWS(txt, nclose+1)
			}
			continue
		}
		break
	}
	if strings.HasPrefix(txt[k:], "->") {
		k += 2
		for k < len(txt) && txt[k] != '{' && txt[k] != ';' {
			k++
		}
		k = skipWS(txt, k)
	}
	if k < len(txt) && txt[k] == ':' {
		// Constructor initializer list: find the brace that opens the body
		// rather than a brace-init inside the list.
		depthParen, depthBrace, depthBracket := 0, 0, 0
		for i := k + 1; i < len(txt); i++ {
			switch txt[i] {
			case '(':
				depthParen++
			case ')':
				if depthParen > 0 {
					depthParen--
				}
			case '[':
				depthBracket++
			case ']':
				if depthBracket > 0 {
					depthBracket--
				}
			case '{':
				if depthParen == 0 && depthBrace == 0 && depthBracket == 0 {
					j := i - 1
					for j >= 0 && isSpace(txt[j]) {
						j--
					}
					if j >= 0 && (isWordChar(txt[j]) || txt[j] == '>') {
						depthBrace++
					} else {
						return i
					}
				} else {
					depthBrace++
				}
			case '}':
				if depthBrace > 0 {
					depthBrace--
				}
			case ';':
				if depthParen == 0 && depthBrace == 0 && depthBracket == 0 {
					return -1
				}
			}
		}
		return -1
	}
	k = skipWS(txt, k)
	if k >= len(txt) || txt[k] != '{' {
		return -1
	}
	// A semicolon between name and brace means this was a declaration.
	if strings.Contains(txt[fnIdx:k], ";") {
		return -1
	}
	return k
}

// isFreeFunctionDefinition checks that the token at fnIdx is preceded by
// something that looks like a return type and resolves the body brace.
func isFreeFunctionDefinition(txt string, fnIdx int, fnName string) int {
	j := fnIdx - 1
	for j >= 0 && isSpace(txt[j]) {
		j--
	}
	if j < 0 {
		return -1
	}
	c := txt[j]
	if !isWordChar(c) && c != '&' && c != '*' && c != '>' && c != ':' {
		return -1
	}
	return findFunctionBodyOpen(txt, fnIdx, fnName)
}
