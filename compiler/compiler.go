// Package compiler is the only component that performs string
// parsing: it turns DSL source text into a canonical mapping.ConfigRoot,
// collecting {line, column, kind, message} diagnostics as it goes
// instead of stopping at the first one (spec.md section 4.2).
//
// The DSL is a small set of function-call statements and braced
// blocks: simple/modifier/lock/tap_hold/modified_output mapping
// statements; when/layer/device_start…device_end scoping blocks;
// md/lk/ly/all/any/not condition expressions; and MD_XX/LK_XX hex
// identifiers naming modifier/lock ids.
package compiler

import (
	"fmt"

	"github.com/keyrx/keyrx/errs"
	"github.com/keyrx/keyrx/keycode"
	"github.com/keyrx/keyrx/mapping"
)

// MaxDiagnostics caps how many diagnostics a single Compile call
// collects before it stops reporting new ones (spec.md section 4.2
// default of 50).
const MaxDiagnostics = 50

// MinThresholdMs and MaxThresholdMs bound tap_hold's threshold_ms
// operand: below the minimum is a hard error, above the maximum is
// accepted with a warning (spec.md section 4.2).
const (
	MinThresholdMs = 50
	MaxThresholdMs = 1000
)

type deviceBuild struct {
	config            mapping.DeviceConfig
	unconditionalSeen map[keycode.KeyCode]bool
}

type parser struct {
	lex  *lexer
	tok  token
	err  error // set on a lexer error; parsing aborts once non-nil

	diags    errs.Diagnostics
	warnings []string

	global    *deviceBuild
	cur       *deviceBuild
	devices   []mapping.DeviceConfig
	condStack []mapping.Condition
}

// Compile parses src and returns the canonical configuration plus any
// diagnostics collected. A non-empty Diagnostics does not necessarily
// mean root is nil: compilation continues past recoverable errors so
// a single run reports as much as possible.
func Compile(src []byte) (*mapping.ConfigRoot, errs.Diagnostics, []string) {
	p := &parser{lex: newLexer(src)}
	p.global = &deviceBuild{
		config:            mapping.DeviceConfig{ID: mapping.GlobalDeviceID},
		unconditionalSeen: make(map[keycode.KeyCode]bool),
	}
	p.cur = p.global
	p.advance()

	for p.tok.kind != tokEOF && p.err == nil {
		p.parseStmt()
	}
	if p.err != nil {
		p.diags = append(p.diags, &errs.CompileError{Kind: errs.ErrSyntax, Message: p.err.Error()})
	}

	root := &mapping.ConfigRoot{}
	if len(p.global.config.Mappings) > 0 || len(p.global.config.Layers) > 0 {
		root.Devices = append(root.Devices, p.global.config)
	}
	root.Devices = append(root.Devices, p.devices...)
	return root, p.diags, p.warnings
}

func (p *parser) advance() {
	if p.err != nil {
		return
	}
	tok, err := p.lex.next()
	if err != nil {
		p.err = err
		return
	}
	p.tok = tok
}

func (p *parser) addDiag(kind error, line, col int, format string, args ...any) {
	if len(p.diags) >= MaxDiagnostics {
		return
	}
	p.diags = append(p.diags, &errs.CompileError{
		Line: line, Column: col, Kind: kind, Message: fmt.Sprintf(format, args...),
	})
}

func (p *parser) addWarning(line, col int, format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf("%d:%d: %s", line, col, fmt.Sprintf(format, args...)))
}

func (p *parser) expect(kind tokenKind, what string) token {
	tok := p.tok
	if tok.kind != kind {
		p.addDiag(errs.ErrSyntax, tok.line, tok.col, "expected %s", what)
	} else {
		p.advance()
	}
	return tok
}

// skipToStmtBoundary discards tokens until the next statement plausibly
// starts, so one malformed call doesn't cascade into spurious errors
// for everything that follows it.
func (p *parser) skipToStmtBoundary() {
	depth := 0
	for p.tok.kind != tokEOF && p.err == nil {
		switch p.tok.kind {
		case tokLParen, tokLBrace, tokLBracket:
			depth++
		case tokRParen, tokRBrace, tokRBracket:
			if depth == 0 {
				p.advance()
				return
			}
			depth--
		}
		p.advance()
		if depth == 0 && p.tok.kind == tokIdent {
			return
		}
	}
}

func (p *parser) parseStmt() {
	if p.tok.kind != tokIdent {
		p.addDiag(errs.ErrSyntax, p.tok.line, p.tok.col, "expected a statement")
		p.advance()
		return
	}
	switch p.tok.text {
	case "device_start":
		p.parseDeviceBlock()
	case "layer":
		p.parseLayerBlock()
	case "when":
		p.parseWhenBlock()
	case "simple":
		p.parseSimple()
	case "modifier":
		p.parseModifier()
	case "lock":
		p.parseLock()
	case "tap_hold":
		p.parseTapHold()
	case "modified_output":
		p.parseModifiedOutput()
	default:
		p.addDiag(errs.ErrSyntax, p.tok.line, p.tok.col, "unknown statement %q", p.tok.text)
		p.skipToStmtBoundary()
	}
}

// addEntry wraps m in the conditions currently open (nested when/layer
// blocks, innermost last) and registers it against the device under
// construction, enforcing invariant 3 (at most one unconditional
// mapping per key).
func (p *parser) addEntry(key keycode.KeyCode, m mapping.Mapping, line, col int) {
	wrapped := m
	for i := len(p.condStack) - 1; i >= 0; i-- {
		wrapped = mapping.Conditional{Condition: p.condStack[i], Then: wrapped}
	}
	if len(p.condStack) == 0 {
		if p.cur.unconditionalSeen[key] {
			p.addDiag(errs.ErrDuplicateMapping, line, col, "duplicate unconditional mapping for key %s", key)
		}
		p.cur.unconditionalSeen[key] = true
	}
	p.cur.config.Mappings = append(p.cur.config.Mappings, mapping.Entry{Key: key, Mapping: wrapped})
}

func (p *parser) parseKeyRef() (keycode.KeyCode, bool) {
	tok := p.tok
	if tok.kind != tokIdent {
		p.addDiag(errs.ErrSyntax, tok.line, tok.col, "expected a key name")
		return 0, false
	}
	p.advance()
	key, ok := keycode.Lookup(tok.text)
	if !ok {
		p.addDiag(errs.ErrSemantic, tok.line, tok.col, "unknown key %q", tok.text)
		return 0, false
	}
	return key, true
}

// parseRawID parses a modifier/lock id operand: either a bare decimal
// number or an MD_XX/LK_XX hex identifier (spec.md section 6). Both
// forms are accepted uniformly; DESIGN.md records this as a resolved
// Open Question.
func (p *parser) parseRawID() (uint8, bool) {
	tok := p.tok
	switch tok.kind {
	case tokNumber:
		p.advance()
		if tok.number < 0 || tok.number > 254 {
			p.addDiag(errs.ErrSemantic, tok.line, tok.col, "id %d out of range [0,254]", tok.number)
			return 0, false
		}
		return uint8(tok.number), true
	case tokIdent:
		p.advance()
		if len(tok.text) == 5 && (tok.text[:3] == "MD_" || tok.text[:3] == "LK_") {
			if v, ok := parseHexByte(tok.text[3:]); ok {
				return v, true
			}
		}
		p.addDiag(errs.ErrSyntax, tok.line, tok.col, "expected an id (number or MD_XX/LK_XX), found %q", tok.text)
		return 0, false
	default:
		p.addDiag(errs.ErrSyntax, tok.line, tok.col, "expected an id")
		return 0, false
	}
}

func parseHexByte(s string) (uint8, bool) {
	if len(s) != 2 {
		return 0, false
	}
	var v uint8
	for _, c := range s {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint8(c - '0')
		case c >= 'A' && c <= 'F':
			v |= uint8(c-'A') + 10
		case c >= 'a' && c <= 'f':
			v |= uint8(c-'a') + 10
		default:
			return 0, false
		}
	}
	return v, true
}

func (p *parser) parseLayerID() (mapping.LayerId, bool) {
	tok := p.expect(tokNumber, "a layer id (number)")
	if tok.kind != tokNumber {
		return 0, false
	}
	if tok.number < 0 || tok.number > 254 {
		p.addDiag(errs.ErrSemantic, tok.line, tok.col, "layer id %d out of range [0,254]", tok.number)
		return 0, false
	}
	return mapping.LayerId(tok.number), true
}

func (p *parser) parseSimple() {
	tok := p.tok
	p.advance()
	p.expect(tokLParen, "'('")
	from, ok1 := p.parseKeyRef()
	p.expect(tokComma, "','")
	to, ok2 := p.parseKeyRef()
	p.expect(tokRParen, "')'")
	if ok1 && ok2 {
		p.addEntry(from, mapping.Simple{To: to}, tok.line, tok.col)
	}
}

func (p *parser) parseModifier() {
	tok := p.tok
	p.advance()
	p.expect(tokLParen, "'('")
	from, ok1 := p.parseKeyRef()
	p.expect(tokComma, "','")
	id, ok2 := p.parseRawID()
	p.expect(tokRParen, "')'")
	if ok1 && ok2 {
		if !mapping.ValidID(id) {
			p.addDiag(errs.ErrSemantic, tok.line, tok.col, "modifier id 255 is reserved")
			return
		}
		p.addEntry(from, mapping.ModifierMapping{ID: mapping.ModifierId(id)}, tok.line, tok.col)
	}
}

func (p *parser) parseLock() {
	tok := p.tok
	p.advance()
	p.expect(tokLParen, "'('")
	from, ok1 := p.parseKeyRef()
	p.expect(tokComma, "','")
	id, ok2 := p.parseRawID()
	p.expect(tokRParen, "')'")
	if ok1 && ok2 {
		if !mapping.ValidID(id) {
			p.addDiag(errs.ErrSemantic, tok.line, tok.col, "lock id 255 is reserved")
			return
		}
		p.addEntry(from, mapping.LockMapping{ID: mapping.LockId(id)}, tok.line, tok.col)
	}
}

func (p *parser) parseTapHold() {
	tok := p.tok
	p.advance()
	p.expect(tokLParen, "'('")
	from, ok1 := p.parseKeyRef()
	p.expect(tokComma, "','")
	tap, ok2 := p.parseKeyRef()
	p.expect(tokComma, "','")
	hold, ok3 := p.parseRawID()
	p.expect(tokComma, "','")
	thresholdTok := p.expect(tokNumber, "a threshold in milliseconds")

	policy := mapping.Timeout
	if p.tok.kind == tokComma {
		p.advance()
		ptok := p.tok
		p.advance()
		if ptok.kind == tokIdent {
			switch ptok.text {
			case "permissive":
				policy = mapping.Permissive
			case "timeout":
				policy = mapping.Timeout
			default:
				p.addDiag(errs.ErrSemantic, ptok.line, ptok.col, "unknown tap-hold policy %q", ptok.text)
			}
		}
	}
	p.expect(tokRParen, "')'")

	if !ok1 || !ok2 || !ok3 || thresholdTok.kind != tokNumber {
		return
	}
	if thresholdTok.number < MinThresholdMs {
		p.addDiag(errs.ErrThresholdTooSmall, thresholdTok.line, thresholdTok.col,
			"tap-hold threshold %dms is below the %dms minimum", thresholdTok.number, MinThresholdMs)
		return
	}
	if thresholdTok.number > MaxThresholdMs {
		p.addWarning(thresholdTok.line, thresholdTok.col,
			"tap-hold threshold %dms exceeds the recommended %dms maximum", thresholdTok.number, MaxThresholdMs)
	}
	if !mapping.ValidID(hold) {
		p.addDiag(errs.ErrSemantic, tok.line, tok.col, "hold modifier id 255 is reserved")
		return
	}
	p.addEntry(from, mapping.TapHold{
		Tap:         tap,
		HoldMod:     mapping.ModifierId(hold),
		ThresholdMs: uint32(thresholdTok.number),
		Policy:      policy,
	}, tok.line, tok.col)
}

func (p *parser) parseModifiedOutput() {
	tok := p.tok
	p.advance()
	p.expect(tokLParen, "'('")
	from, ok1 := p.parseKeyRef()
	p.expect(tokComma, "','")
	p.expect(tokLBracket, "'['")

	var mods []keycode.KeyCode
	okMods := true
	if p.tok.kind != tokRBracket {
		for {
			m, ok := p.parseKeyRef()
			if !ok {
				okMods = false
			}
			mods = append(mods, m)
			if p.tok.kind != tokComma {
				break
			}
			p.advance()
		}
	}
	p.expect(tokRBracket, "']'")
	p.expect(tokComma, "','")
	to, ok2 := p.parseKeyRef()
	p.expect(tokRParen, "')'")

	if len(mods) > keycode.MaxOutputEvents-1 {
		p.addDiag(errs.ErrSemantic, tok.line, tok.col, "modified_output has %d modifiers, exceeds max %d", len(mods), keycode.MaxOutputEvents-1)
		okMods = false
	}
	if ok1 && ok2 && okMods {
		p.addEntry(from, mapping.ModifiedOutput{Mods: mods, To: to}, tok.line, tok.col)
	}
}

func (p *parser) parseDeviceBlock() {
	tok := p.tok
	p.advance()
	p.expect(tokLParen, "'('")
	patTok := p.expect(tokString, "a device pattern string")
	p.expect(tokRParen, "')'")

	if p.cur != p.global {
		p.addDiag(errs.ErrSemantic, tok.line, tok.col, "device_start blocks cannot nest")
	}

	match, id := parseDevicePattern(patTok.text)
	db := &deviceBuild{
		config:            mapping.DeviceConfig{ID: id, Match: match},
		unconditionalSeen: make(map[keycode.KeyCode]bool),
	}
	outer := p.cur
	p.cur = db

	for p.tok.kind != tokEOF && p.err == nil {
		if p.tok.kind == tokIdent && p.tok.text == "device_end" {
			p.advance()
			p.expect(tokLParen, "'('")
			p.expect(tokRParen, "')'")
			break
		}
		p.parseStmt()
	}

	p.cur = outer
	p.devices = append(p.devices, db.config)
}

// parseDevicePattern reads "vendor:product[:serial]" (hex vendor and
// product, free-form serial) and returns both the structural match
// and the device's own id (the pattern string itself, which is also
// how diagnostics and the simulator name the device).
func parseDevicePattern(pattern string) (mapping.DeviceMatch, string) {
	var vendor, product uint16
	var serial *string

	fields := splitPattern(pattern)
	if len(fields) >= 1 {
		vendor = parseHex16(fields[0])
	}
	if len(fields) >= 2 {
		product = parseHex16(fields[1])
	}
	if len(fields) >= 3 {
		s := fields[2]
		serial = &s
	}
	return mapping.DeviceMatch{Vendor: vendor, Product: product, Serial: serial}, pattern
}

func splitPattern(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func parseHex16(s string) uint16 {
	var v uint16
	for _, c := range s {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint16(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint16(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= uint16(c-'A') + 10
		}
	}
	return v
}

func (p *parser) parseLayerBlock() {
	tok := p.tok
	p.advance()
	p.expect(tokLParen, "'('")

	var trigger keycode.KeyCode
	haveTrigger := false
	first := p.tok
	if first.kind == tokIdent {
		if key, ok := keycode.Lookup(first.text); ok {
			trigger = key
			haveTrigger = true
			p.advance()
			p.expect(tokComma, "','")
		}
	}
	id, idOK := p.parseLayerID()
	p.expect(tokRParen, "')'")
	p.expect(tokLBrace, "'{'")

	if idOK {
		p.cur.config.Layers = append(p.cur.config.Layers, mapping.LayerDef{ID: id})
		if haveTrigger {
			p.addEntry(trigger, mapping.LayerMapping{ID: id}, tok.line, tok.col)
		}
		p.condStack = append(p.condStack, mapping.LayerActive{ID: id})
	}

	for p.tok.kind != tokEOF && p.tok.kind != tokRBrace && p.err == nil {
		p.parseStmt()
	}
	p.expect(tokRBrace, "'}'")

	if idOK {
		p.condStack = p.condStack[:len(p.condStack)-1]
	}
}

func (p *parser) parseWhenBlock() {
	tok := p.tok
	p.advance()
	p.expect(tokLParen, "'('")
	cond, ok := p.parseCondition()
	p.expect(tokRParen, "')'")
	p.expect(tokLBrace, "'{'")

	if ok {
		if d := mapping.ConditionDepth(cond); d > mapping.MaxConditionDepth {
			p.addDiag(errs.ErrSemantic, tok.line, tok.col, "condition nested %d deep, exceeds max %d", d, mapping.MaxConditionDepth)
			ok = false
		}
	}
	if ok {
		p.condStack = append(p.condStack, cond)
	}

	for p.tok.kind != tokEOF && p.tok.kind != tokRBrace && p.err == nil {
		p.parseStmt()
	}
	p.expect(tokRBrace, "'}'")

	if ok {
		p.condStack = p.condStack[:len(p.condStack)-1]
	}
}

func (p *parser) parseCondition() (mapping.Condition, bool) {
	tok := p.tok
	if tok.kind != tokIdent {
		p.addDiag(errs.ErrSyntax, tok.line, tok.col, "expected a condition")
		return nil, false
	}
	p.advance()
	switch tok.text {
	case "md":
		p.expect(tokLParen, "'('")
		id, ok := p.parseRawID()
		p.expect(tokRParen, "')'")
		return mapping.ModifierActive{ID: mapping.ModifierId(id)}, ok
	case "lk":
		p.expect(tokLParen, "'('")
		id, ok := p.parseRawID()
		p.expect(tokRParen, "')'")
		return mapping.LockActive{ID: mapping.LockId(id)}, ok
	case "ly":
		p.expect(tokLParen, "'('")
		id, ok := p.parseLayerID()
		p.expect(tokRParen, "')'")
		return mapping.LayerActive{ID: id}, ok
	case "not":
		p.expect(tokLParen, "'('")
		child, ok := p.parseCondition()
		p.expect(tokRParen, "')'")
		return mapping.NotActive{Condition: child}, ok
	case "all", "any":
		p.expect(tokLParen, "'('")
		var children []mapping.Condition
		ok := true
		for p.tok.kind != tokRParen && p.tok.kind != tokEOF {
			c, cok := p.parseCondition()
			if !cok {
				ok = false
			}
			children = append(children, c)
			if p.tok.kind != tokComma {
				break
			}
			p.advance()
		}
		p.expect(tokRParen, "')'")
		if tok.text == "all" {
			return mapping.AllActive{Conditions: children}, ok
		}
		return mapping.AnyActive{Conditions: children}, ok
	default:
		p.addDiag(errs.ErrSyntax, tok.line, tok.col, "unknown condition %q", tok.text)
		return nil, false
	}
}
