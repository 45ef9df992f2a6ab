package vulkan

import (
	"encoding/binary"
	"math"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/renderer/device"
)

const (
	// position, normal, packed color and two texture coordinate pairs
	vertexStride = 3*4 + 3*4 + 4 + 2*4 + 2*4

	initialStreamSize = 1 << 20
)

// buffer is host visible memory that stays mapped for its whole life.
type buffer struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	data   []byte
}

func newBuffer(c *context, size int, usage vk.BufferUsageFlagBits) (*buffer, error) {
	b := &buffer{}
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	if err := check(vk.CreateBuffer(c.device, &createInfo, nil, &b.handle), "vkCreateBuffer"); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(c.device, b.handle, &reqs)
	reqs.Deref()
	memType, err := c.findMemoryType(reqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		b.destroy(c)
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}
	if err := check(vk.AllocateMemory(c.device, &allocInfo, nil, &b.memory), "vkAllocateMemory"); err != nil {
		b.destroy(c)
		return nil, err
	}
	if err := check(vk.BindBufferMemory(c.device, b.handle, b.memory, 0), "vkBindBufferMemory"); err != nil {
		b.destroy(c)
		return nil, err
	}

	var ptr unsafe.Pointer
	if err := check(vk.MapMemory(c.device, b.memory, 0, vk.DeviceSize(size), 0, &ptr), "vkMapMemory"); err != nil {
		b.destroy(c)
		return nil, err
	}
	b.data = unsafe.Slice((*byte)(ptr), size)
	return b, nil
}

func (b *buffer) destroy(c *context) {
	if b.data != nil {
		vk.UnmapMemory(c.device, b.memory)
		b.data = nil
	}
	if b.handle != vk.NullBuffer {
		vk.DestroyBuffer(c.device, b.handle, nil)
		b.handle = vk.NullBuffer
	}
	if b.memory != vk.NullDeviceMemory {
		vk.FreeMemory(c.device, b.memory, nil)
		b.memory = vk.NullDeviceMemory
	}
}

/**
 * @brief A per frame linear allocator over one mapped buffer. When a frame
 * needs more than fits, the buffer is replaced by one twice the size and
 * the old one is kept alive until the frame's fence signals.
 */
type stream struct {
	usage  vk.BufferUsageFlagBits
	buf    *buffer
	offset int
}

func (s *stream) reset() {
	s.offset = 0
}

// write copies data into the stream and returns the buffer and offset it landed at.
func (s *stream) write(c *context, f *frame, data []byte) (vk.Buffer, int, error) {
	if s.buf == nil || s.offset+len(data) > len(s.buf.data) {
		size := initialStreamSize
		if s.buf != nil {
			size = len(s.buf.data) * 2
			f.garbage = append(f.garbage, s.buf.destroy)
		}
		for size < len(data) {
			size *= 2
		}
		buf, err := newBuffer(c, size, s.usage)
		if err != nil {
			s.buf = nil
			return nil, 0, err
		}
		s.buf = buf
		s.offset = 0
	}
	offset := s.offset
	copy(s.buf.data[offset:], data)
	// keep the next write aligned for both vertex and index fetches
	s.offset += (len(data) + 15) &^ 15
	return s.buf.handle, offset, nil
}

func (s *stream) destroy(c *context) {
	if s.buf != nil {
		s.buf.destroy(c)
		s.buf = nil
	}
}

/**
 * @brief Interleaves the vertex streams of geo. Missing normals default to
 * +Z, missing colors to opaque white and missing texture coordinates to 0.
 */
func packVertices(geo *device.Geometry) []byte {
	n := len(geo.XYZ)
	out := make([]byte, n*vertexStride)
	le := binary.LittleEndian
	putFloat := func(at int, v float32) {
		le.PutUint32(out[at:], math.Float32bits(v))
	}

	hasNormals := len(geo.Normals) >= n
	hasColors := len(geo.Colors) >= n
	hasTC := [2]bool{len(geo.TexCoords[0]) >= n, len(geo.TexCoords[1]) >= n}

	for i := 0; i < n; i++ {
		at := i * vertexStride
		for k := 0; k < 3; k++ {
			putFloat(at+k*4, geo.XYZ[i][k])
		}
		at += 12
		if hasNormals {
			for k := 0; k < 3; k++ {
				putFloat(at+k*4, geo.Normals[i][k])
			}
		} else {
			putFloat(at+8, 1)
		}
		at += 12
		if hasColors {
			copy(out[at:at+4], geo.Colors[i][:])
		} else {
			copy(out[at:at+4], []byte{255, 255, 255, 255})
		}
		at += 4
		for u := 0; u < 2; u++ {
			if hasTC[u] {
				putFloat(at, geo.TexCoords[u][i][0])
				putFloat(at+4, geo.TexCoords[u][i][1])
			}
			at += 8
		}
	}
	return out
}

func packIndexes(indexes []uint32) []byte {
	out := make([]byte, len(indexes)*4)
	for i, idx := range indexes {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}
