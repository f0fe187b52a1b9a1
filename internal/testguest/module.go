package testguest

import (
	"fmt"
	"slices"
)

// Value types.
const (
	I32 byte = 0x7F
	I64 byte = 0x7E
	F32 byte = 0x7D
	F64 byte = 0x7C
)

// Section ids and export kinds.
const (
	sectionType   = 1
	sectionImport = 2
	sectionFunc   = 3
	sectionMemory = 5
	sectionGlobal = 6
	sectionExport = 7
	sectionCode   = 10
	sectionData   = 11

	kindFunc   = 0x00
	kindMemory = 0x02
	kindGlobal = 0x03

	funcTypeMarker = 0x60
)

var header = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

// FuncType is a function signature in value-type bytes.
type FuncType struct {
	Params  []byte
	Results []byte
}

func (ft FuncType) equal(o FuncType) bool {
	return slices.Equal(ft.Params, o.Params) && slices.Equal(ft.Results, o.Results)
}

type importEntry struct {
	module  string
	name    string
	typeIdx uint32
}

// Function is a module-defined function. Index is its index in the
// function space, valid for Call before the body is set.
type Function struct {
	locals  []byte
	body    *Code
	typeIdx uint32
	Index   uint32
}

// Locals declares additional locals after the parameters.
func (f *Function) Locals(types ...byte) *Function {
	f.locals = append(f.locals, types...)
	return f
}

// Body sets the function body.
func (f *Function) Body(c *Code) *Function {
	f.body = c
	return f
}

type global struct {
	valType byte
	mutable bool
	init    int32
}

type exportEntry struct {
	name string
	kind byte
	idx  uint32
}

type segment struct {
	bytes  []byte
	offset int32
}

// Module accumulates a WebAssembly module definition. All imports must be
// added before the first function.
type Module struct {
	types     []FuncType
	imports   []importEntry
	funcs     []*Function
	globals   []global
	exports   []exportEntry
	data      []segment
	memPages  uint32
	hasMemory bool
}

func (m *Module) typeIndex(ft FuncType) uint32 {
	for i, t := range m.types {
		if t.equal(ft) {
			return uint32(i)
		}
	}
	m.types = append(m.types, ft)
	return uint32(len(m.types) - 1)
}

// Import declares a function import and returns its function index.
func (m *Module) Import(module, name string, params, results []byte) uint32 {
	if len(m.funcs) > 0 {
		panic(fmt.Sprintf("testguest: import %s.%s declared after functions", module, name))
	}
	m.imports = append(m.imports, importEntry{
		module:  module,
		name:    name,
		typeIdx: m.typeIndex(FuncType{Params: params, Results: results}),
	})
	return uint32(len(m.imports) - 1)
}

// Func declares a function. Set its body before encoding.
func (m *Module) Func(params, results []byte) *Function {
	f := &Function{
		typeIdx: m.typeIndex(FuncType{Params: params, Results: results}),
		Index:   uint32(len(m.imports) + len(m.funcs)),
	}
	m.funcs = append(m.funcs, f)
	return f
}

// Memory defines the module's single memory with minPages initial pages.
func (m *Module) Memory(minPages uint32) {
	m.hasMemory = true
	m.memPages = minPages
}

// Global defines an i32 global and returns its index.
func (m *Module) Global(mutable bool, init int32) uint32 {
	m.globals = append(m.globals, global{valType: I32, mutable: mutable, init: init})
	return uint32(len(m.globals) - 1)
}

// Data places bytes at offset in memory 0.
func (m *Module) Data(offset int32, bytes []byte) {
	m.data = append(m.data, segment{offset: offset, bytes: bytes})
}

func (m *Module) ExportFunc(name string, idx uint32) {
	m.exports = append(m.exports, exportEntry{name: name, kind: kindFunc, idx: idx})
}

func (m *Module) ExportMemory(name string) {
	m.exports = append(m.exports, exportEntry{name: name, kind: kindMemory, idx: 0})
}

func (m *Module) ExportGlobal(name string, idx uint32) {
	m.exports = append(m.exports, exportEntry{name: name, kind: kindGlobal, idx: idx})
}

// Encode returns the binary module.
func (m *Module) Encode() []byte {
	buf := &Buffer{}
	buf.AppendByte(header...)

	if len(m.types) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.types)))
		for _, ft := range m.types {
			sec.AppendByte(funcTypeMarker)
			sec.WriteVec(ft.Params)
			sec.WriteVec(ft.Results)
		}
		writeSection(buf, sectionType, sec)
	}

	if len(m.imports) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec.WriteName(imp.module)
			sec.WriteName(imp.name)
			sec.AppendByte(kindFunc)
			sec.WriteU32(imp.typeIdx)
		}
		writeSection(buf, sectionImport, sec)
	}

	if len(m.funcs) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec.WriteU32(f.typeIdx)
		}
		writeSection(buf, sectionFunc, sec)
	}

	if m.hasMemory {
		sec := &Buffer{}
		sec.WriteU32(1)
		sec.AppendByte(0x00)
		sec.WriteU32(m.memPages)
		writeSection(buf, sectionMemory, sec)
	}

	if len(m.globals) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.globals)))
		for _, g := range m.globals {
			sec.AppendByte(g.valType)
			if g.mutable {
				sec.AppendByte(0x01)
			} else {
				sec.AppendByte(0x00)
			}
			sec.AppendByte(opI32Const)
			sec.WriteI32(g.init)
			sec.AppendByte(opEnd)
		}
		writeSection(buf, sectionGlobal, sec)
	}

	if len(m.exports) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.exports)))
		for _, e := range m.exports {
			sec.WriteName(e.name)
			sec.AppendByte(e.kind)
			sec.WriteU32(e.idx)
		}
		writeSection(buf, sectionExport, sec)
	}

	if len(m.funcs) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			body := &Buffer{}
			encodeLocals(body, f.locals)
			if f.body != nil {
				body.AppendByte(f.body.Bytes()...)
			}
			body.AppendByte(opEnd)
			sec.WriteVec(body.Bytes)
		}
		writeSection(buf, sectionCode, sec)
	}

	if len(m.data) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.data)))
		for _, d := range m.data {
			sec.AppendByte(0x00, opI32Const)
			sec.WriteI32(d.offset)
			sec.AppendByte(opEnd)
			sec.WriteVec(d.bytes)
		}
		writeSection(buf, sectionData, sec)
	}

	return buf.Bytes
}

// encodeLocals groups runs of equal types into (count, type) entries.
func encodeLocals(buf *Buffer, locals []byte) {
	type run struct {
		count uint32
		typ   byte
	}
	var runs []run
	for _, t := range locals {
		if n := len(runs); n > 0 && runs[n-1].typ == t {
			runs[n-1].count++
			continue
		}
		runs = append(runs, run{count: 1, typ: t})
	}
	buf.WriteU32(uint32(len(runs)))
	for _, r := range runs {
		buf.WriteU32(r.count)
		buf.AppendByte(r.typ)
	}
}
