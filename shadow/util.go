package shadow

import (
	"unsafe"

	"github.com/vkforge/vkforge/linear"
)

func matPtr(m *linear.M4) unsafe.Pointer { return unsafe.Pointer(m) }
