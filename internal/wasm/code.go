package wasm

// Code is a function body under construction. Each method appends one
// instruction and returns the extended body, so bodies read top to bottom:
//
//	wasm.Code{}.LocalGet(0).I32Load(4).End()
type Code []byte

// Block types for Block, Loop and If.
const (
	BlockEmpty byte = 0x40
	BlockI32   byte = 0x7f
	BlockI64   byte = 0x7e
)

func (c Code) op(b ...byte) Code {
	return append(c, b...)
}

func (c Code) memarg(opcode byte, alignLog2, offset uint32) Code {
	c = append(c, opcode)
	c = append(c, EncodeULEB128(alignLog2)...)
	return append(c, EncodeULEB128(offset)...)
}

func (c Code) LocalGet(i uint32) Code { return append(c.op(0x20), EncodeULEB128(i)...) }
func (c Code) LocalSet(i uint32) Code { return append(c.op(0x21), EncodeULEB128(i)...) }
func (c Code) LocalTee(i uint32) Code { return append(c.op(0x22), EncodeULEB128(i)...) }
func (c Code) Call(f uint32) Code { return append(c.op(0x10), EncodeULEB128(f)...) }

func (c Code) I32Const(v int32) Code { return append(c.op(0x41), EncodeSLEB128(v)...) }
func (c Code) I64Const(v int64) Code { return append(c.op(0x42), EncodeSLEB128(v)...) }

func (c Code) I32Load(offset uint32) Code { return c.memarg(0x28, 2, offset) }
func (c Code) I64Load(offset uint32) Code { return c.memarg(0x29, 3, offset) }
func (c Code) I32Store(offset uint32) Code { return c.memarg(0x36, 2, offset) }
func (c Code) I64Store(offset uint32) Code { return c.memarg(0x37, 3, offset) }

func (c Code) I32Add() Code { return c.op(0x6a) }
func (c Code) I32Sub() Code { return c.op(0x6b) }
func (c Code) I32Mul() Code { return c.op(0x6c) }
func (c Code) I32Eqz() Code { return c.op(0x45) }
func (c Code) I32GeU() Code { return c.op(0x4f) }
func (c Code) I64Add() Code { return c.op(0x7c) }
func (c Code) I64ExtendI32U() Code { return c.op(0xad) }
func (c Code) Drop() Code { return c.op(0x1a) }

func (c Code) Block(bt byte) Code { return c.op(0x02, bt) }
func (c Code) Loop(bt byte) Code { return c.op(0x03, bt) }
func (c Code) If(bt byte) Code { return c.op(0x04, bt) }
func (c Code) Br(depth uint32) Code {
	return append(c.op(0x0c), EncodeULEB128(depth)...)
}
func (c Code) BrIf(depth uint32) Code {
	return append(c.op(0x0d), EncodeULEB128(depth)...)
}
func (c Code) Unreachable() Code { return c.op(0x00) }

// End closes a block, loop, if, or the function body itself.
func (c Code) End() Code { return c.op(0x0b) }
