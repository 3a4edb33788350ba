package blob

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
)

// growthFactor is applied whenever a per-frame buffer must grow to
// fit this frame's domain/vertex/member counts, so repeated small
// growths don't thrash allocation every frame.
const growthFactor = 1.5

// drawIndirectStride mirrors VkDrawIndirectCommand (non-indexed: the
// blob renderer draws raw marching-cubes vertices, not an index
// buffer).
const drawIndirectStride = 16 // vertexCount, instanceCount, firstVertex, firstInstance (uint32 x4)

const metaballStride = 32 // vec4(center, baseRadius) + vec4(scale, maxRadius), std430 packed
const maxMetaballBufferSize = 1 << 16 // 65536, the cmdUpdateBuffer limit the per-frame metaball/member buffers must stay under

// Buffers owns the per-frame GPU-visible state driving the blob
// compute/raster passes: the shared vertex output buffer, one
// indirect draw command per domain, the flat domain-membership list,
// and the packed metaball array. Sizes grow by growthFactor as scenes
// add metaballs; old backing allocations are not freed immediately
// but pushed onto a deferred-destruction ring so in-flight frames
// that still reference them aren't disturbed.
type Buffers struct {
	ctx *gfx.Context

	Vertex       *gfx.Buffer
	DrawIndirect *gfx.Buffer
	DomainMember *gfx.Buffer
	Metaball     *gfx.Buffer

	vertexCap, drawCap, memberCap int

	trash    [gfx.MaxFramesInFlight + 1][]*gfx.Buffer
	trashPos int
}

func NewBuffers(ctx *gfx.Context) (*Buffers, error) {
	b := &Buffers{ctx: ctx}
	buf, err := ctx.CreateBuffer(MaxMetaballs*metaballStride,
		vk.BufferUsageStorageBufferBit|vk.BufferUsageTransferDstBit, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return nil, err
	}
	b.Metaball = buf
	return b, nil
}

// metaballPacked mirrors the compute shader's std430 Metaball
// element: center and baseRadius share one vec4 slot, scale and
// maxRadius the other, keeping the whole array a flat 32 bytes per
// entry with no separate scalar array to index.
type metaballPacked struct {
	Center     [3]float32
	BaseRadius float32
	Scale      [3]float32
	MaxRadius  float32
}

// WriteMetaballs records the inline updates (vkCmdUpdateBuffer) that
// refresh the Metaball table and the flattened
// per-domain member-index list for this frame, returning each
// domain's member-list start offset for use in DispatchMesh's push
// constants. balls must not exceed MaxMetaballs; domains' Members
// must already fit within b.DomainMember's capacity (call Update
// first).
func (b *Buffers) WriteMetaballs(cmd vk.CommandBuffer, balls []Metaball, domains []Domain) []uint32 {
	if len(balls) > 0 {
		packed := make([]metaballPacked, len(balls))
		for i, m := range balls {
			packed[i] = metaballPacked{Center: [3]float32{m.Center[0], m.Center[1], m.Center[2]}, BaseRadius: m.BaseRadius,
				Scale: [3]float32{m.Scale[0], m.Scale[1], m.Scale[2]}, MaxRadius: m.MaxRadius}
		}
		size := vk.DeviceSize(len(packed) * metaballStride)
		vk.CmdUpdateBuffer(cmd, b.Metaball.Handle, 0, size, unsafe.Pointer(&packed[0]))
	}

	starts := make([]uint32, len(domains))
	if len(domains) == 0 {
		return starts
	}
	var flat []int32
	for i, d := range domains {
		starts[i] = uint32(len(flat))
		for _, m := range d.Members {
			flat = append(flat, int32(m))
		}
	}
	if len(flat) == 0 {
		return starts
	}
	size := vk.DeviceSize(len(flat) * 4)
	vk.CmdUpdateBuffer(cmd, b.DomainMember.Handle, 0, size, unsafe.Pointer(&flat[0]))
	return starts
}

// Update grows whichever buffers are too small for this frame's
// domain partition, draining the oldest deferred-destruction ring
// slot first (safe: MaxFramesInFlight fences have elapsed by the
// time a slot is reused).
func (b *Buffers) Update(domains []Domain, subdivisions int) {
	b.drainOldest()

	neededVerts := 0
	neededMembers := 0
	for _, d := range domains {
		neededVerts += EstimateVertexCount(subdivisions)
		neededMembers += len(d.Members)
	}
	neededDraws := len(domains)

	b.growVertex(neededVerts)
	b.growDraw(neededDraws)
	b.growMember(neededMembers)
}

func (b *Buffers) growVertex(needed int) {
	if needed <= b.vertexCap {
		return
	}
	newCap := growTo(b.vertexCap, needed)
	buf, err := b.ctx.CreateBuffer(vk.DeviceSize(newCap*vertexStride), vk.BufferUsageVertexBufferBit|vk.BufferUsageStorageBufferBit, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return
	}
	b.retire(b.Vertex)
	b.Vertex, b.vertexCap = buf, newCap
}

func (b *Buffers) growDraw(needed int) {
	if needed <= b.drawCap {
		return
	}
	newCap := growTo(b.drawCap, needed)
	buf, err := b.ctx.CreateBuffer(vk.DeviceSize(newCap*drawIndirectStride), vk.BufferUsageIndirectBufferBit|vk.BufferUsageTransferDstBit, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return
	}
	b.retire(b.DrawIndirect)
	b.DrawIndirect, b.drawCap = buf, newCap
}

func (b *Buffers) growMember(needed int) {
	if needed <= b.memberCap {
		return
	}
	newCap := growTo(b.memberCap, needed)
	size := vk.DeviceSize(newCap * 4)
	if size >= maxMetaballBufferSize {
		size = maxMetaballBufferSize - 4
		newCap = int(size / 4)
	}
	buf, err := b.ctx.CreateBuffer(size, vk.BufferUsageStorageBufferBit|vk.BufferUsageTransferDstBit, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return
	}
	b.retire(b.DomainMember)
	b.DomainMember, b.memberCap = buf, newCap
}

func growTo(cur, needed int) int {
	n := cur
	if n == 0 {
		n = 1
	}
	for n < needed {
		n = int(float64(n) * growthFactor)
		if n == 0 {
			n = needed
		}
	}
	return n
}

func (b *Buffers) retire(old *gfx.Buffer) {
	if old == nil {
		return
	}
	slot := (b.trashPos + gfx.MaxFramesInFlight) % len(b.trash)
	b.trash[slot] = append(b.trash[slot], old)
}

func (b *Buffers) drainOldest() {
	slot := b.trashPos % len(b.trash)
	for _, buf := range b.trash[slot] {
		buf.Destroy(b.ctx)
	}
	b.trash[slot] = nil
	b.trashPos++
}

const vertexStride = 32 // position (vec3) + normal (vec3), std430-packed with padding

func (b *Buffers) Destroy() {
	for _, slot := range b.trash {
		for _, buf := range slot {
			buf.Destroy(b.ctx)
		}
	}
	for _, buf := range []*gfx.Buffer{b.Vertex, b.DrawIndirect, b.DomainMember, b.Metaball} {
		if buf != nil {
			buf.Destroy(b.ctx)
		}
	}
}
