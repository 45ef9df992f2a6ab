package vulkan

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spirvHeader(order binary.ByteOrder, words int) []byte {
	code := make([]byte, words*4)
	order.PutUint32(code, spirvMagic)
	order.PutUint32(code[4:], 0x00010000)
	return code
}

func TestDecodeSPIRV_ByteOrder(t *testing.T) {
	words, err := decodeSPIRV(spirvHeader(binary.LittleEndian, 5))
	require.NoError(t, err)
	assert.Equal(t, []uint32{spirvMagic, 0x00010000, 0, 0, 0}, words)

	words, err = decodeSPIRV(spirvHeader(binary.BigEndian, 5))
	require.NoError(t, err)
	assert.Equal(t, uint32(spirvMagic), words[0])
	assert.Equal(t, uint32(0x00010000), words[1])
}

func TestDecodeSPIRV_Rejects(t *testing.T) {
	_, err := decodeSPIRV(spirvHeader(binary.LittleEndian, 4))
	assert.Error(t, err, "shorter than a header")

	_, err = decodeSPIRV(append(spirvHeader(binary.LittleEndian, 5), 0))
	assert.Error(t, err, "not a multiple of four")

	_, err = decodeSPIRV(make([]byte, 20))
	assert.Error(t, err, "no magic number")
}

func TestLoadSPIRV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "generic.vert.spv")
	require.NoError(t, os.WriteFile(path, spirvHeader(binary.LittleEndian, 6), 0o644))

	words, err := loadSPIRV(path)
	require.NoError(t, err)
	assert.Len(t, words, 6)

	_, err = loadSPIRV(filepath.Join(dir, "missing.spv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mage build:shaders")
}

func TestBottomUpRGBA(t *testing.T) {
	// two rows of one BGRA pixel each, top row first
	src := []byte{
		1, 2, 3, 4,
		5, 6, 7, 8,
	}
	assert.Equal(t, []byte{7, 6, 5, 8, 3, 2, 1, 4}, bottomUpRGBA(src, 1, 2, true))
	assert.Equal(t, []byte{5, 6, 7, 8, 1, 2, 3, 4}, bottomUpRGBA(src, 1, 2, false))
}

func TestCheck(t *testing.T) {
	assert.NoError(t, check(vk.Success, "vkCreateFence"))

	err := check(vk.ErrorDeviceLost, "vkQueueSubmit")
	require.Error(t, err)
	assert.Equal(t, "vkQueueSubmit failed with VK_ERROR_DEVICE_LOST", err.Error())
	assert.Equal(t, "VkResult(-12345)", resultString(vk.Result(-12345)))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "VK_KHR_surface\x00", safeString("VK_KHR_surface"))
	assert.Equal(t, "done\x00", safeString("done\x00"))
	assert.Equal(t, "llvmpipe", cString([]byte{'l', 'l', 'v', 'm', 'p', 'i', 'p', 'e', 0, 'x'}))
}
