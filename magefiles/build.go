//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/target"
)

type Build mg.Namespace

const shaderDir = "engine/renderer/vulkan/shaders"

// Compiles the Vulkan back end's GLSL sources to SPIR-V next to them.
// Up to date modules are skipped.
func (Build) Shaders() error {
	if err := requireTool("glslc", "install the Vulkan SDK or shaderc"); err != nil {
		return err
	}
	for _, src := range []string{"generic.vert", "generic.frag", "dlight.frag"} {
		stale, err := target.Path(filepath.Join(shaderDir, src+".spv"), filepath.Join(shaderDir, src))
		if err != nil {
			return err
		}
		if !stale {
			continue
		}
		if _, err := executeCmd("glslc", withDir(shaderDir), withArgs(src, "-o", src+".spv"), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Downloads the modules and builds the testbed binary.
func (Build) Testbed() error {
	if _, err := executeCmd("go", withArgs("mod", "download"), withStream()); err != nil {
		return err
	}
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/tessera", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the unit tests of every package. The Vulkan and OpenGL packages need
// cgo and the platform headers.
func (Build) Test() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withEnv("CGO_ENABLED=1"), withStream())
	return err
}
