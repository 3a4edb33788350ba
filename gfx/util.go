package gfx

import "unsafe"

// cstr returns a NUL-terminated byte slice for passing Go strings
// into Vulkan's *char fields.
func cstr(s string) string { return s + "\x00" }

// pnextOf returns p as the unsafe.Pointer used to chain a structure
// into another's pNext field.
func pnextOf[T any](p *T) unsafe.Pointer { return unsafe.Pointer(p) }
