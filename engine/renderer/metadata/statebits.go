package metadata

/**
 * @brief The packed render state of a stage: blend function, depth test and
 * write, alpha test class, polygon offset and polygon mode.
 */
type StateBits uint32

const (
	SrcBlendZero             StateBits = 0x00000001
	SrcBlendOne              StateBits = 0x00000002
	SrcBlendDstColor         StateBits = 0x00000003
	SrcBlendOneMinusDstColor StateBits = 0x00000004
	SrcBlendSrcAlpha         StateBits = 0x00000005
	SrcBlendOneMinusSrcAlpha StateBits = 0x00000006
	SrcBlendDstAlpha         StateBits = 0x00000007
	SrcBlendOneMinusDstAlpha StateBits = 0x00000008
	SrcBlendAlphaSaturate    StateBits = 0x00000009
	SrcBlendBits             StateBits = 0x0000000f

	DstBlendZero             StateBits = 0x00000010
	DstBlendOne              StateBits = 0x00000020
	DstBlendSrcColor         StateBits = 0x00000030
	DstBlendOneMinusSrcColor StateBits = 0x00000040
	DstBlendSrcAlpha         StateBits = 0x00000050
	DstBlendOneMinusSrcAlpha StateBits = 0x00000060
	DstBlendDstAlpha         StateBits = 0x00000070
	DstBlendOneMinusDstAlpha StateBits = 0x00000080
	DstBlendBits             StateBits = 0x000000f0

	BlendBits = SrcBlendBits | DstBlendBits

	DepthMaskTrue StateBits = 0x00000100

	PolyModeLine StateBits = 0x00001000

	DepthTestDisable StateBits = 0x00010000
	DepthFuncEqual   StateBits = 0x00020000
	PolygonOffset    StateBits = 0x00040000

	AlphaTestGT0  StateBits = 0x10000000
	AlphaTestLT80 StateBits = 0x20000000
	AlphaTestGE80 StateBits = 0x40000000
	AlphaTestBits StateBits = 0x70000000
	StateDefault            = DepthMaskTrue
)

// SrcBlend returns only the source blend factor.
func (s StateBits) SrcBlend() StateBits {
	return s & SrcBlendBits
}

// DstBlend returns only the destination blend factor.
func (s StateBits) DstBlend() StateBits {
	return s & DstBlendBits
}

// Blended reports whether any blend factor is set.
func (s StateBits) Blended() bool {
	return s&BlendBits != 0
}

// ReadsDestination reports whether the blend function references the
// framebuffer color, which rules out additive dynamic light passes.
func (s StateBits) ReadsDestination() bool {
	switch s.SrcBlend() {
	case SrcBlendDstColor, SrcBlendOneMinusDstColor, SrcBlendDstAlpha, SrcBlendOneMinusDstAlpha:
		return true
	}
	switch s.DstBlend() {
	case DstBlendSrcColor, DstBlendOneMinusSrcColor:
		return true
	}
	return false
}
