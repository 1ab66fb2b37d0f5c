// Package artifact produces and consumes the sealed binary that a
// compiled KeyRx profile is shipped as:
//
//	"KRX\n" ‖ u16 version (BE) ‖ u32 payload_len (BE) ‖ payload ‖ sha256(preceding)
//
// The payload is a contiguous relocatable image: a fixed-width header
// table of arena offsets and counts, followed by arenas of fixed-width
// records (devices, layers, entries, mappings, conditions) plus flat
// byte/index arenas for strings, key lists, and condition children.
// Every record sits at a statically computable position — offset +
// index*width — so reading record N never requires having decoded
// record N-1 first. Decode is therefore: one bounds check of the
// header-declared arena extents against the payload length, one hash
// check of the whole buffer, and then direct indexed reads ("cast")
// into the arenas — never a sequential length-prefixed walk.
package artifact

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/keyrx/keyrx/errs"
	"github.com/keyrx/keyrx/keycode"
	"github.com/keyrx/keyrx/mapping"
)

// Magic identifies a KeyRx artifact.
var Magic = [4]byte{'K', 'R', 'X', '\n'}

// Version1 is the only payload layout currently defined.
const Version1 uint16 = 1

// SupportedVersions lists every version this build of the codec can decode.
var SupportedVersions = map[uint16]bool{Version1: true}

// HeaderSize is magic + version + payload_len.
const HeaderSize = 4 + 2 + 4

// DigestSize is the trailing SHA-256 digest size.
const DigestSize = sha256.Size

// DefaultMaxArtifactSize is the ceiling consumers apply unless they
// configure a different one (spec.md section 6).
const DefaultMaxArtifactSize = 16 << 20

// Encode serializes root into a sealed artifact using Version1.
func Encode(root *mapping.ConfigRoot) ([]byte, error) {
	payload, err := encodePayload(root)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, HeaderSize+len(payload)+DigestSize)
	buf = append(buf, Magic[:]...)
	buf = binary.BigEndian.AppendUint16(buf, Version1)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)

	sum := sha256.Sum256(buf)
	buf = append(buf, sum[:]...)
	return buf, nil
}

// DecodeOptions customizes Decode. The zero value applies
// DefaultMaxArtifactSize.
type DecodeOptions struct {
	MaxSize uint32
}

// Decode verifies and parses a sealed artifact. Failures are one of
// errs.ErrInvalidMagic, errs.ErrUnsupportedVersion, errs.ErrTruncated,
// errs.ErrHashMismatch, errs.ErrMalformedPayload, or
// errs.ErrArtifactTooLarge, each wrapped in an *errs.LoadError.
func Decode(data []byte, opts DecodeOptions) (*mapping.ConfigRoot, error) {
	maxSize := opts.MaxSize
	if maxSize == 0 {
		maxSize = DefaultMaxArtifactSize
	}

	if len(data) < HeaderSize+DigestSize {
		return nil, &errs.LoadError{Kind: errs.ErrTruncated}
	}
	if !bytes.Equal(data[0:4], Magic[:]) {
		return nil, &errs.LoadError{Kind: errs.ErrInvalidMagic}
	}

	version := binary.BigEndian.Uint16(data[4:6])
	if !SupportedVersions[version] {
		return nil, &errs.LoadError{Kind: errs.ErrUnsupportedVersion, Actual: fmt.Sprintf("%d", version)}
	}

	payloadLen := binary.BigEndian.Uint32(data[6:10])
	if payloadLen > maxSize {
		return nil, &errs.LoadError{Kind: errs.ErrArtifactTooLarge, Actual: fmt.Sprintf("%d bytes", payloadLen)}
	}
	if uint64(HeaderSize)+uint64(payloadLen)+uint64(DigestSize) != uint64(len(data)) {
		return nil, &errs.LoadError{Kind: errs.ErrTruncated}
	}

	signed := data[:HeaderSize+int(payloadLen)]
	want := data[HeaderSize+int(payloadLen):]
	got := sha256.Sum256(signed)
	if subtle.ConstantTimeCompare(got[:], want) != 1 {
		return nil, &errs.LoadError{
			Kind:     errs.ErrHashMismatch,
			Expected: fmt.Sprintf("%x", want),
			Actual:   fmt.Sprintf("%x", got),
		}
	}

	payload := data[HeaderSize : HeaderSize+int(payloadLen)]
	root, err := decodePayload(payload)
	if err != nil {
		return nil, &errs.LoadError{Kind: errs.ErrMalformedPayload}
	}
	return root, nil
}

// --- payload layout ------------------------------------------------
//
// The payload is a fixed-size header table followed by arenas in a
// fixed order: strings, keys (u16 elements), condition-children (u32
// elements), layers, conditions, mappings, entries, devices. Every
// arena is addressed by a (offset, count) pair read straight out of
// the header — no arena's extent depends on decoding another arena
// first.

const (
	hDeviceCount = iota * 4
	hStringOff
	hStringLen
	hKeyOff
	hKeyLen
	hChildOff
	hChildLen
	hLayerOff
	hLayerLen
	hConditionOff
	hConditionLen
	hMappingOff
	hMappingLen
	hEntryOff
	hEntryLen
	hDeviceOff
	payloadHeaderSize
)

const (
	deviceRecordSize    = 4*10 + 1 // idOff,idLen,vendor,product,hasSerial(u8),serialOff,serialLen,layerStart,layerCount,entryStart,entryCount
	layerRecordSize     = 4 * 3    // id, nameOff, nameLen
	entryRecordSize     = 4 * 2    // key, mappingIndex
	mappingRecordSize   = 1 + 4*4  // tag, op0, op1, op2, op3
	conditionRecordSize = 1 + 4*2  // tag, op0, op1
	keyElemSize         = 2
	childElemSize       = 4
)

const (
	tagSimple = iota
	tagModifier
	tagLock
	tagModifiedOutput
	tagConditional
	tagTapHold
	tagLayer
)

const (
	condModifierActive = iota
	condLockActive
	condLayerActive
	condAllActive
	condAnyActive
	condNotActive
)

// --- encode: arena builder ------------------------------------------

// arenaBuilder accumulates the flat byte/record arenas that make up a
// payload. Variable-length data (strings, key lists, condition
// children) is appended once and referenced by later fixed-width
// records as (offset, count); mapping and condition trees are built
// bottom-up so a parent record can reference its children by the
// fixed index they were assigned when appended.
type arenaBuilder struct {
	strings    []byte
	keys       []byte
	children   []byte
	layers     []byte
	conditions []byte
	mappings   []byte
	entries    []byte
	devices    []byte
}

func (a *arenaBuilder) internString(s string) (off, ln uint32) {
	off = uint32(len(a.strings))
	a.strings = append(a.strings, s...)
	return off, uint32(len(s))
}

func (a *arenaBuilder) appendKeys(ks []keycode.KeyCode) (off, count uint32) {
	off = uint32(len(a.keys) / keyElemSize)
	for _, k := range ks {
		var b [keyElemSize]byte
		binary.LittleEndian.PutUint16(b[:], uint16(k))
		a.keys = append(a.keys, b[:]...)
	}
	return off, uint32(len(ks))
}

func (a *arenaBuilder) appendChildren(idxs []uint32) (off, count uint32) {
	off = uint32(len(a.children) / childElemSize)
	for _, idx := range idxs {
		var b [childElemSize]byte
		binary.LittleEndian.PutUint32(b[:], idx)
		a.children = append(a.children, b[:]...)
	}
	return off, uint32(len(idxs))
}

func putMappingRecord(buf []byte, tag uint8, op0, op1, op2, op3 uint32) {
	buf[0] = tag
	binary.LittleEndian.PutUint32(buf[1:5], op0)
	binary.LittleEndian.PutUint32(buf[5:9], op1)
	binary.LittleEndian.PutUint32(buf[9:13], op2)
	binary.LittleEndian.PutUint32(buf[13:17], op3)
}

func putConditionRecord(buf []byte, tag uint8, op0, op1 uint32) {
	buf[0] = tag
	binary.LittleEndian.PutUint32(buf[1:5], op0)
	binary.LittleEndian.PutUint32(buf[5:9], op1)
}

// addCondition appends c's children (postorder), then c itself, and
// returns c's record index in the condition arena.
func (a *arenaBuilder) addCondition(c mapping.Condition) (uint32, error) {
	var tag uint8
	var op0, op1 uint32

	switch v := c.(type) {
	case mapping.ModifierActive:
		tag, op0 = condModifierActive, uint32(v.ID)
	case mapping.LockActive:
		tag, op0 = condLockActive, uint32(v.ID)
	case mapping.LayerActive:
		tag, op0 = condLayerActive, uint32(v.ID)
	case mapping.AllActive:
		idxs, err := a.addConditions(v.Conditions)
		if err != nil {
			return 0, err
		}
		tag = condAllActive
		op0, op1 = a.appendChildren(idxs)
	case mapping.AnyActive:
		idxs, err := a.addConditions(v.Conditions)
		if err != nil {
			return 0, err
		}
		tag = condAnyActive
		op0, op1 = a.appendChildren(idxs)
	case mapping.NotActive:
		idx, err := a.addCondition(v.Condition)
		if err != nil {
			return 0, err
		}
		tag, op0 = condNotActive, idx
	default:
		return 0, fmt.Errorf("artifact: unknown condition variant %T", c)
	}

	rec := make([]byte, conditionRecordSize)
	putConditionRecord(rec, tag, op0, op1)
	index := uint32(len(a.conditions) / conditionRecordSize)
	a.conditions = append(a.conditions, rec...)
	return index, nil
}

func (a *arenaBuilder) addConditions(cs []mapping.Condition) ([]uint32, error) {
	idxs := make([]uint32, len(cs))
	for i, c := range cs {
		idx, err := a.addCondition(c)
		if err != nil {
			return nil, err
		}
		idxs[i] = idx
	}
	return idxs, nil
}

// addMapping appends m's children, then m itself, and returns m's
// record index in the mapping arena.
func (a *arenaBuilder) addMapping(m mapping.Mapping) (uint32, error) {
	var tag uint8
	var op0, op1, op2, op3 uint32

	switch v := m.(type) {
	case mapping.Simple:
		tag, op0 = tagSimple, uint32(v.To)
	case mapping.ModifierMapping:
		tag, op0 = tagModifier, uint32(v.ID)
	case mapping.LockMapping:
		tag, op0 = tagLock, uint32(v.ID)
	case mapping.ModifiedOutput:
		tag = tagModifiedOutput
		op0, op1 = a.appendKeys(v.Mods)
		op2 = uint32(v.To)
	case mapping.Conditional:
		tag = tagConditional
		condIdx, err := a.addCondition(v.Condition)
		if err != nil {
			return 0, err
		}
		thenIdx, err := a.addMapping(v.Then)
		if err != nil {
			return 0, err
		}
		op0, op1 = condIdx, thenIdx
		if v.Else != nil {
			elseIdx, err := a.addMapping(v.Else)
			if err != nil {
				return 0, err
			}
			op2, op3 = 1, elseIdx
		}
	case mapping.TapHold:
		tag = tagTapHold
		op0 = uint32(v.Tap)
		op1 = uint32(v.HoldMod)
		op2 = v.ThresholdMs
		op3 = uint32(v.Policy)
	case mapping.LayerMapping:
		tag, op0 = tagLayer, uint32(v.ID)
	default:
		return 0, fmt.Errorf("artifact: unknown mapping variant %T", m)
	}

	rec := make([]byte, mappingRecordSize)
	putMappingRecord(rec, tag, op0, op1, op2, op3)
	index := uint32(len(a.mappings) / mappingRecordSize)
	a.mappings = append(a.mappings, rec...)
	return index, nil
}

func (a *arenaBuilder) addLayer(l mapping.LayerDef) {
	nameOff, nameLen := a.internString(l.Name)
	rec := make([]byte, layerRecordSize)
	binary.LittleEndian.PutUint32(rec[0:4], uint32(l.ID))
	binary.LittleEndian.PutUint32(rec[4:8], nameOff)
	binary.LittleEndian.PutUint32(rec[8:12], nameLen)
	a.layers = append(a.layers, rec...)
}

func (a *arenaBuilder) addEntry(key uint32, mappingIndex uint32) {
	rec := make([]byte, entryRecordSize)
	binary.LittleEndian.PutUint32(rec[0:4], key)
	binary.LittleEndian.PutUint32(rec[4:8], mappingIndex)
	a.entries = append(a.entries, rec...)
}

func (a *arenaBuilder) addDevice(dev mapping.DeviceConfig) error {
	idOff, idLen := a.internString(dev.ID)

	var hasSerial uint8
	var serialOff, serialLen uint32
	if dev.Match.Serial != nil {
		hasSerial = 1
		serialOff, serialLen = a.internString(*dev.Match.Serial)
	}

	layerStart := uint32(len(a.layers) / layerRecordSize)
	for _, l := range dev.Layers {
		a.addLayer(l)
	}

	entryStart := uint32(len(a.entries) / entryRecordSize)
	for _, entry := range dev.Mappings {
		mappingIndex, err := a.addMapping(entry.Mapping)
		if err != nil {
			return err
		}
		a.addEntry(uint32(entry.Key), mappingIndex)
	}

	rec := make([]byte, deviceRecordSize)
	binary.LittleEndian.PutUint32(rec[0:4], idOff)
	binary.LittleEndian.PutUint32(rec[4:8], idLen)
	binary.LittleEndian.PutUint32(rec[8:12], uint32(dev.Match.Vendor))
	binary.LittleEndian.PutUint32(rec[12:16], uint32(dev.Match.Product))
	rec[16] = hasSerial
	binary.LittleEndian.PutUint32(rec[17:21], serialOff)
	binary.LittleEndian.PutUint32(rec[21:25], serialLen)
	binary.LittleEndian.PutUint32(rec[25:29], layerStart)
	binary.LittleEndian.PutUint32(rec[29:33], uint32(len(dev.Layers)))
	binary.LittleEndian.PutUint32(rec[33:37], entryStart)
	binary.LittleEndian.PutUint32(rec[37:41], uint32(len(dev.Mappings)))
	a.devices = append(a.devices, rec...)
	return nil
}

func encodePayload(root *mapping.ConfigRoot) ([]byte, error) {
	a := &arenaBuilder{}
	for _, dev := range root.Devices {
		if err := a.addDevice(dev); err != nil {
			return nil, err
		}
	}

	header := make([]byte, payloadHeaderSize)
	put := func(field int, v uint32) { binary.LittleEndian.PutUint32(header[field:field+4], v) }

	off := uint32(payloadHeaderSize)
	put(hDeviceCount, uint32(len(root.Devices)))

	put(hStringOff, off)
	put(hStringLen, uint32(len(a.strings)))
	off += uint32(len(a.strings))

	put(hKeyOff, off)
	put(hKeyLen, uint32(len(a.keys)/keyElemSize))
	off += uint32(len(a.keys))

	put(hChildOff, off)
	put(hChildLen, uint32(len(a.children)/childElemSize))
	off += uint32(len(a.children))

	put(hLayerOff, off)
	put(hLayerLen, uint32(len(a.layers)/layerRecordSize))
	off += uint32(len(a.layers))

	put(hConditionOff, off)
	put(hConditionLen, uint32(len(a.conditions)/conditionRecordSize))
	off += uint32(len(a.conditions))

	put(hMappingOff, off)
	put(hMappingLen, uint32(len(a.mappings)/mappingRecordSize))
	off += uint32(len(a.mappings))

	put(hEntryOff, off)
	put(hEntryLen, uint32(len(a.entries)/entryRecordSize))
	off += uint32(len(a.entries))

	put(hDeviceOff, off)
	off += uint32(len(a.devices))

	payload := make([]byte, 0, off)
	payload = append(payload, header...)
	payload = append(payload, a.strings...)
	payload = append(payload, a.keys...)
	payload = append(payload, a.children...)
	payload = append(payload, a.layers...)
	payload = append(payload, a.conditions...)
	payload = append(payload, a.mappings...)
	payload = append(payload, a.entries...)
	payload = append(payload, a.devices...)
	return payload, nil
}

// --- decode: bounds-checked arena view --------------------------------

// arenaView is a read-only, bounds-checked window over a decoded
// payload's arenas. Every accessor computes its target range by direct
// offset arithmetic (base + index*width) and is checked once against
// the arena's declared extent — there is no cursor that walks forward
// through the buffer accumulating state across calls.
type arenaView struct {
	buf []byte

	stringOff, stringLen       uint32
	keyOff, keyLen             uint32
	childOff, childLen         uint32
	layerOff, layerLen         uint32
	conditionOff, conditionLen uint32
	mappingOff, mappingLen     uint32
	entryOff, entryLen         uint32
	deviceOff, deviceCount     uint32
}

func newArenaView(payload []byte) (*arenaView, error) {
	if len(payload) < payloadHeaderSize {
		return nil, errs.ErrTruncated
	}
	h := func(field int) uint32 { return binary.LittleEndian.Uint32(payload[field : field+4]) }

	v := &arenaView{
		buf:          payload,
		deviceCount:  h(hDeviceCount),
		stringOff:    h(hStringOff),
		stringLen:    h(hStringLen),
		keyOff:       h(hKeyOff),
		keyLen:       h(hKeyLen),
		childOff:     h(hChildOff),
		childLen:     h(hChildLen),
		layerOff:     h(hLayerOff),
		layerLen:     h(hLayerLen),
		conditionOff: h(hConditionOff),
		conditionLen: h(hConditionLen),
		mappingOff:   h(hMappingOff),
		mappingLen:   h(hMappingLen),
		entryOff:     h(hEntryOff),
		entryLen:     h(hEntryLen),
		deviceOff:    h(hDeviceOff),
	}

	// Every arena's declared extent is checked against the payload
	// length up front, in one pass, before any record is read.
	extents := []struct{ off, count, width uint32 }{
		{v.stringOff, v.stringLen, 1},
		{v.keyOff, v.keyLen, keyElemSize},
		{v.childOff, v.childLen, childElemSize},
		{v.layerOff, v.layerLen, layerRecordSize},
		{v.conditionOff, v.conditionLen, conditionRecordSize},
		{v.mappingOff, v.mappingLen, mappingRecordSize},
		{v.entryOff, v.entryLen, entryRecordSize},
		{v.deviceOff, v.deviceCount, deviceRecordSize},
	}
	for _, e := range extents {
		end := uint64(e.off) + uint64(e.count)*uint64(e.width)
		if end > uint64(len(payload)) {
			return nil, errs.ErrTruncated
		}
	}
	return v, nil
}

func (v *arenaView) string(off, ln uint32) (string, error) {
	end := uint64(off) + uint64(ln)
	if end > uint64(v.stringLen) {
		return "", errs.ErrMalformedPayload
	}
	base := v.stringOff + off
	return string(v.buf[base : base+ln]), nil
}

func (v *arenaView) keys(off, count uint32) ([]keycode.KeyCode, error) {
	if off+count < off || uint64(off)+uint64(count) > uint64(v.keyLen) {
		return nil, errs.ErrMalformedPayload
	}
	base := v.keyOff + off*keyElemSize
	out := make([]keycode.KeyCode, count)
	for i := range out {
		p := base + uint32(i)*keyElemSize
		out[i] = keycode.KeyCode(binary.LittleEndian.Uint16(v.buf[p : p+keyElemSize]))
	}
	return out, nil
}

func (v *arenaView) childIndexes(off, count uint32) ([]uint32, error) {
	if off+count < off || uint64(off)+uint64(count) > uint64(v.childLen) {
		return nil, errs.ErrMalformedPayload
	}
	base := v.childOff + off*childElemSize
	out := make([]uint32, count)
	for i := range out {
		p := base + uint32(i)*childElemSize
		out[i] = binary.LittleEndian.Uint32(v.buf[p : p+childElemSize])
	}
	return out, nil
}

func (v *arenaView) layer(index uint32) (mapping.LayerDef, error) {
	if index >= v.layerLen {
		return mapping.LayerDef{}, errs.ErrMalformedPayload
	}
	rec := v.buf[v.layerOff+index*layerRecordSize:]
	id := binary.LittleEndian.Uint32(rec[0:4])
	nameOff := binary.LittleEndian.Uint32(rec[4:8])
	nameLen := binary.LittleEndian.Uint32(rec[8:12])
	name, err := v.string(nameOff, nameLen)
	if err != nil {
		return mapping.LayerDef{}, err
	}
	return mapping.LayerDef{ID: mapping.LayerId(id), Name: name}, nil
}

func (v *arenaView) entry(index uint32) (key, mappingIndex uint32, err error) {
	if index >= v.entryLen {
		return 0, 0, errs.ErrMalformedPayload
	}
	rec := v.buf[v.entryOff+index*entryRecordSize:]
	return binary.LittleEndian.Uint32(rec[0:4]), binary.LittleEndian.Uint32(rec[4:8]), nil
}

func (v *arenaView) condition(index uint32) (mapping.Condition, error) {
	if index >= v.conditionLen {
		return nil, errs.ErrMalformedPayload
	}
	rec := v.buf[v.conditionOff+index*conditionRecordSize:]
	tag := rec[0]
	op0 := binary.LittleEndian.Uint32(rec[1:5])
	op1 := binary.LittleEndian.Uint32(rec[5:9])

	switch tag {
	case condModifierActive:
		return mapping.ModifierActive{ID: mapping.ModifierId(op0)}, nil
	case condLockActive:
		return mapping.LockActive{ID: mapping.LockId(op0)}, nil
	case condLayerActive:
		return mapping.LayerActive{ID: mapping.LayerId(op0)}, nil
	case condAllActive, condAnyActive:
		idxs, err := v.childIndexes(op0, op1)
		if err != nil {
			return nil, err
		}
		children := make([]mapping.Condition, len(idxs))
		for i, idx := range idxs {
			if children[i], err = v.condition(idx); err != nil {
				return nil, err
			}
		}
		if tag == condAllActive {
			return mapping.AllActive{Conditions: children}, nil
		}
		return mapping.AnyActive{Conditions: children}, nil
	case condNotActive:
		child, err := v.condition(op0)
		if err != nil {
			return nil, err
		}
		return mapping.NotActive{Condition: child}, nil
	default:
		return nil, errs.ErrMalformedPayload
	}
}

func (v *arenaView) mapping(index uint32) (mapping.Mapping, error) {
	if index >= v.mappingLen {
		return nil, errs.ErrMalformedPayload
	}
	rec := v.buf[v.mappingOff+index*mappingRecordSize:]
	tag := rec[0]
	op0 := binary.LittleEndian.Uint32(rec[1:5])
	op1 := binary.LittleEndian.Uint32(rec[5:9])
	op2 := binary.LittleEndian.Uint32(rec[9:13])
	op3 := binary.LittleEndian.Uint32(rec[13:17])

	switch tag {
	case tagSimple:
		return mapping.Simple{To: keycode.KeyCode(op0)}, nil
	case tagModifier:
		return mapping.ModifierMapping{ID: mapping.ModifierId(op0)}, nil
	case tagLock:
		return mapping.LockMapping{ID: mapping.LockId(op0)}, nil
	case tagModifiedOutput:
		mods, err := v.keys(op0, op1)
		if err != nil {
			return nil, err
		}
		return mapping.ModifiedOutput{Mods: mods, To: keycode.KeyCode(op2)}, nil
	case tagConditional:
		cond, err := v.condition(op0)
		if err != nil {
			return nil, err
		}
		then, err := v.mapping(op1)
		if err != nil {
			return nil, err
		}
		var elseMapping mapping.Mapping
		if op2 == 1 {
			if elseMapping, err = v.mapping(op3); err != nil {
				return nil, err
			}
		}
		return mapping.Conditional{Condition: cond, Then: then, Else: elseMapping}, nil
	case tagTapHold:
		return mapping.TapHold{
			Tap:         keycode.KeyCode(op0),
			HoldMod:     mapping.ModifierId(op1),
			ThresholdMs: op2,
			Policy:      mapping.TapHoldPolicy(op3),
		}, nil
	case tagLayer:
		return mapping.LayerMapping{ID: mapping.LayerId(op0)}, nil
	default:
		return nil, errs.ErrMalformedPayload
	}
}

func (v *arenaView) device(index uint32) (mapping.DeviceConfig, error) {
	if index >= v.deviceCount {
		return mapping.DeviceConfig{}, errs.ErrMalformedPayload
	}
	rec := v.buf[v.deviceOff+index*deviceRecordSize:]
	idOff := binary.LittleEndian.Uint32(rec[0:4])
	idLen := binary.LittleEndian.Uint32(rec[4:8])
	vendor := binary.LittleEndian.Uint32(rec[8:12])
	product := binary.LittleEndian.Uint32(rec[12:16])
	hasSerial := rec[16]
	serialOff := binary.LittleEndian.Uint32(rec[17:21])
	serialLen := binary.LittleEndian.Uint32(rec[21:25])
	layerStart := binary.LittleEndian.Uint32(rec[25:29])
	layerCount := binary.LittleEndian.Uint32(rec[29:33])
	entryStart := binary.LittleEndian.Uint32(rec[33:37])
	entryCount := binary.LittleEndian.Uint32(rec[37:41])

	id, err := v.string(idOff, idLen)
	if err != nil {
		return mapping.DeviceConfig{}, err
	}

	dev := mapping.DeviceConfig{
		ID:    id,
		Match: mapping.DeviceMatch{Vendor: uint16(vendor), Product: uint16(product)},
	}
	if hasSerial == 1 {
		s, err := v.string(serialOff, serialLen)
		if err != nil {
			return mapping.DeviceConfig{}, err
		}
		dev.Match.Serial = &s
	}

	dev.Layers = make([]mapping.LayerDef, layerCount)
	for i := range dev.Layers {
		l, err := v.layer(layerStart + uint32(i))
		if err != nil {
			return mapping.DeviceConfig{}, err
		}
		dev.Layers[i] = l
	}

	dev.Mappings = make([]mapping.Entry, entryCount)
	for i := range dev.Mappings {
		key, mappingIndex, err := v.entry(entryStart + uint32(i))
		if err != nil {
			return mapping.DeviceConfig{}, err
		}
		m, err := v.mapping(mappingIndex)
		if err != nil {
			return mapping.DeviceConfig{}, err
		}
		dev.Mappings[i] = mapping.Entry{Key: keycode.KeyCode(key), Mapping: m}
	}

	return dev, nil
}

func decodePayload(payload []byte) (*mapping.ConfigRoot, error) {
	v, err := newArenaView(payload)
	if err != nil {
		return nil, err
	}

	root := &mapping.ConfigRoot{Devices: make([]mapping.DeviceConfig, v.deviceCount)}
	for i := range root.Devices {
		dev, err := v.device(uint32(i))
		if err != nil {
			return nil, err
		}
		root.Devices[i] = dev
	}
	return root, nil
}
