// Package hostenv implements the env namespace imported by contract guests.
//
//	call_host()          writes "Hello from the Host!"
//	print(ptr, len)      writes the guest's UTF-8 text, then frees ptr
//
// print takes ownership of ptr: the allocation is freed through the guest's
// free export before print returns, including when the bytes are not valid
// UTF-8. A range outside linear memory is reported without freeing.
package hostenv
