package irfixture

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/funvibe/funbit"

	"github.com/funvibe/infoflow/internal/ir"
)

// moduleMagic identifies the compact binary module fixture format.
var moduleMagic = [4]byte{'I', 'R', 'F', 'X'}

const moduleVersionV1 byte = 0x01

// Format (all integers little-endian):
//   magic (4 bytes) "IRFX"
//   version (1 byte) 0x01
//   value count (uint32), then that many:
//     name length (uint16), name bytes
//   function count (uint32), then that many:
//     name length (uint16), name bytes
//     flags (1 byte): bit0=external, bit1=varargs, bit2=returnsVal
//     param count (uint16), then that many value-table indices (uint32)
//     return value index (uint32)
//     block count (uint32), then that many:
//       instruction count (uint32), then that many:
//         tagged header, big-endian <<Op:8, HasResult:8, OperandCount:16>>
//         result value-table index (uint32), present iff HasResult != 0
//         OperandCount value-table indices (uint32 each)
//
// Blocks' own PC values and Instruction.Successors/DirectCallee/Args/
// IsIndirect/ExternName/IntrinsicName/CondOrAddr are not carried by this
// format: it covers the data-flow-relevant shape of a module (values,
// params, return slot, per-instruction opcode/result/operands) that
// internal/generator's non-call instruction rules and internal/driver's
// context-insensitive scheduling need, and is meant for constructing small
// hand-held or generated test modules rather than round-tripping a real
// compiler's output.

// EncodeModule serializes a module into the format DecodeModule reads back.
// It collects every ir.Value reachable from fn.Params/ReturnValue/
// instruction results and operands into a single value table, in first-seen
// order, and rewrites them as table indices.
func EncodeModule(m *ir.Module) []byte {
	buf := new(bytes.Buffer)
	buf.Write(moduleMagic[:])
	buf.WriteByte(moduleVersionV1)

	idx := make(map[ir.Value]uint32)
	var names []string
	seen := func(v ir.Value) uint32 {
		if i, ok := idx[v]; ok {
			return i
		}
		i := uint32(len(names))
		idx[v] = i
		names = append(names, v.Name)
		return i
	}
	for _, fn := range m.Functions {
		for _, p := range fn.Params {
			seen(p)
		}
		seen(fn.ReturnValue)
		for _, b := range fn.Blocks {
			for _, instr := range b.Instructions {
				if instr.Result != nil {
					seen(*instr.Result)
				}
				for _, op := range instr.Operands {
					seen(op)
				}
			}
		}
	}

	writeUint32(buf, uint32(len(names)))
	for _, n := range names {
		writeString(buf, n)
	}

	writeUint32(buf, uint32(len(m.Functions)))
	for _, fn := range m.Functions {
		encodeFunction(buf, fn, idx)
	}

	return buf.Bytes()
}

func encodeFunction(buf *bytes.Buffer, fn *ir.Function, idx map[ir.Value]uint32) {
	writeString(buf, fn.Name)

	var flags byte
	if fn.External {
		flags |= fnFlagExternal
	}
	if fn.IsVarargs {
		flags |= fnFlagVarargs
	}
	if fn.ReturnsVal {
		flags |= fnFlagReturnsVal
	}
	buf.WriteByte(flags)

	binary.Write(buf, binary.LittleEndian, uint16(len(fn.Params)))
	for _, p := range fn.Params {
		writeUint32(buf, idx[p])
	}
	writeUint32(buf, idx[fn.ReturnValue])

	writeUint32(buf, uint32(len(fn.Blocks)))
	for _, b := range fn.Blocks {
		writeUint32(buf, uint32(len(b.Instructions)))
		for _, instr := range b.Instructions {
			buf.WriteByte(byte(instr.Op))
			if instr.Result != nil {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
			binary.Write(buf, binary.BigEndian, uint16(len(instr.Operands)))
			if instr.Result != nil {
				writeUint32(buf, idx[*instr.Result])
			}
			for _, op := range instr.Operands {
				writeUint32(buf, idx[op])
			}
		}
	}
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	binary.Write(buf, binary.LittleEndian, v)
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

// DecodeModule parses a binary module fixture built with EncodeModule.
func DecodeModule(data []byte) (*ir.Module, error) {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := r.Read(magic[:]); err != nil {
		return nil, fmt.Errorf("irfixture: reading magic: %w", err)
	}
	if magic != moduleMagic {
		return nil, fmt.Errorf("irfixture: bad magic %q, expected %q", magic, moduleMagic)
	}
	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("irfixture: reading version: %w", err)
	}
	if version != moduleVersionV1 {
		return nil, fmt.Errorf("irfixture: unsupported version %d", version)
	}

	values, err := decodeValueTable(r)
	if err != nil {
		return nil, fmt.Errorf("irfixture: value table: %w", err)
	}

	var fnCount uint32
	if err := binary.Read(r, binary.LittleEndian, &fnCount); err != nil {
		return nil, fmt.Errorf("irfixture: function count: %w", err)
	}

	fns := make([]*ir.Function, 0, fnCount)
	for i := uint32(0); i < fnCount; i++ {
		fn, err := decodeFunction(r, values)
		if err != nil {
			return nil, fmt.Errorf("irfixture: function %d: %w", i, err)
		}
		fns = append(fns, fn)
	}

	return ir.NewModule(fns), nil
}

func decodeValueTable(r *bytes.Reader) ([]ir.Value, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	values := make([]ir.Value, count)
	for i := range values {
		name, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		values[i] = ir.NewValue(name)
	}
	return values, nil
}

const (
	fnFlagExternal   = 1 << 0
	fnFlagVarargs    = 1 << 1
	fnFlagReturnsVal = 1 << 2
)

func decodeFunction(r *bytes.Reader, values []ir.Value) (*ir.Function, error) {
	name, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	flags, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}

	var paramCount uint16
	if err := binary.Read(r, binary.LittleEndian, &paramCount); err != nil {
		return nil, fmt.Errorf("param count: %w", err)
	}
	params := make([]ir.Value, paramCount)
	for i := range params {
		v, err := readValueRef(r, values)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		params[i] = v
	}

	retVal, err := readValueRef(r, values)
	if err != nil {
		return nil, fmt.Errorf("return value: %w", err)
	}

	fn := &ir.Function{
		Name:       name,
		Params:     params,
		ReturnValue: retVal,
		External:   flags&fnFlagExternal != 0,
		IsVarargs:  flags&fnFlagVarargs != 0,
		ReturnsVal: flags&fnFlagReturnsVal != 0,
	}

	var blockCount uint32
	if err := binary.Read(r, binary.LittleEndian, &blockCount); err != nil {
		return nil, fmt.Errorf("block count: %w", err)
	}
	fn.Blocks = make([]*ir.Block, 0, blockCount)
	for i := uint32(0); i < blockCount; i++ {
		b := ir.NewBlock(int(i))
		instrCount, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("block %d instruction count: %w", i, err)
		}
		b.Instructions = make([]*ir.Instruction, 0, instrCount)
		for j := uint32(0); j < instrCount; j++ {
			instr, err := decodeInstruction(r, values, b)
			if err != nil {
				return nil, fmt.Errorf("block %d instruction %d: %w", i, j, err)
			}
			b.Instructions = append(b.Instructions, instr)
		}
		fn.Blocks = append(fn.Blocks, b)
	}
	if len(fn.Blocks) > 0 {
		fn.Entry = fn.Blocks[0]
	}

	return fn, nil
}

// instructionHeaderSize is the width, in bytes, of the tagged record
// decodeInstructionHeader matches: <<Op:8, HasResult:8, OperandCount:16>>.
const instructionHeaderSize = 4

// decodeInstructionHeader matches the fixed-width tagged header that
// precedes every instruction's variable-length value-index list, using
// funbit's Erlang-style bit pattern matching (spec.md's irfixture format is
// modeled on the teacher's own tagged bytecode records, internal/vm/chunk.go,
// decoded here the way funbit decodes a `<<Op:8, HasResult:8, Count:16,
// Rest/binary>>` pattern).
func decodeInstructionHeader(raw []byte) (op byte, hasResult byte, operandCount uint16, err error) {
	bs := funbit.NewBitStringFromBytes(raw)
	_, matchErr := funbit.Match(bs,
		funbit.Integer(&op, funbit.WithSize(8)),
		funbit.Integer(&hasResult, funbit.WithSize(8)),
		funbit.Integer(&operandCount, funbit.WithSize(16)),
	)
	if matchErr != nil {
		return 0, 0, 0, fmt.Errorf("matching instruction header: %w", matchErr)
	}
	return op, hasResult, operandCount, nil
}

func decodeInstruction(r *bytes.Reader, values []ir.Value, block *ir.Block) (*ir.Instruction, error) {
	header := make([]byte, instructionHeaderSize)
	if _, err := r.Read(header); err != nil {
		return nil, fmt.Errorf("instruction header: %w", err)
	}
	opByte, hasResult, operandCount, err := decodeInstructionHeader(header)
	if err != nil {
		return nil, err
	}
	instr := &ir.Instruction{Op: ir.Opcode(opByte), Block: block}

	if hasResult != 0 {
		v, err := readValueRef(r, values)
		if err != nil {
			return nil, fmt.Errorf("result: %w", err)
		}
		instr.Result = &v
	}

	instr.Operands = make([]ir.Value, operandCount)
	for i := range instr.Operands {
		v, err := readValueRef(r, values)
		if err != nil {
			return nil, fmt.Errorf("operand %d: %w", i, err)
		}
		instr.Operands[i] = v
	}

	return instr, nil
}

func readValueRef(r *bytes.Reader, values []ir.Value) (ir.Value, error) {
	idx, err := readUint32(r)
	if err != nil {
		return ir.Value{}, err
	}
	if int(idx) >= len(values) {
		return ir.Value{}, fmt.Errorf("value index %d out of range (table has %d entries)", idx, len(values))
	}
	return values[idx], nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readString(r *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := r.Read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
