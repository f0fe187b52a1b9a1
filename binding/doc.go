// Package binding connects host functions and guest exports across the
// wasm boundary.
//
// The import side is a Table keyed by (namespace, name). Each entry carries
// a declared Signature and a HostFunc. Before a guest is instantiated the
// table is checked against the guest's declared imports; every missing or
// mismatched entry is reported in one UnresolvedImportsError. On first
// instantiation the table builds one wazero host module per namespace and
// becomes immutable.
//
// The export side is Export, a handle resolved by name from an instance and
// checked against an expected Signature. Export.Call validates arity and
// value kinds before any guest code runs.
//
// Values cross the boundary as Val, a value kind plus its raw 64-bit
// encoding as used on the wazero stack.
//
// A host function receives a Caller, a bounded view of the calling instance:
// its memory bridge, its guest allocator and its exports. Calls made through
// the Caller run on the same stack as the host function.
package binding
