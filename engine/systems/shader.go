package systems

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/spaghettifunk/tessera/engine/assets"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/tess"
)

/** @brief Configuration for the shader system. */
type ShaderSystemConfig struct {
	/** @brief The maximum number of shaders held in the system. Bounded by the sort key layout. */
	MaxShaderCount int
	/** @brief Evaluator settings used when testing stages for collapse. */
	IdentityLight     float32
	IdentityLightByte uint8
}

/**
 * @brief The shader registry. Shaders are parsed from scripts on first use,
 * or built implicitly from an image of the same name, then finalized and
 * inserted into the sort order. A shader handle is its registration index.
 */
type ShaderSystem struct {
	// This system's configuration.
	Config *ShaderSystemConfig
	// Shaders in registration order; the index is the handle.
	Shaders []*metadata.Shader
	// Shaders ordered by sort; the index is the value stored in sort keys.
	SortedShaders []*metadata.Shader
	// A lookup table for shader name->shaders, one per lightmap index.
	Lookup map[string][]*metadata.Shader
	// The built-in shader used in place of broken or missing shaders.
	DefaultShader *metadata.Shader

	/** @brief Called with the sorted index a new shader was inserted at. */
	OnSortedInsert func(sortedIndex int)

	// shader name->text of its block, starting at the opening brace
	scripts map[string]string
	// script path->names of the shaders it defines
	scriptNames map[string][]string
	// video handle->stream name
	videos map[int]string

	// evaluates stage colors for CollapseStages
	sample *tess.Buffer

	/** @brief Reads script files in parallel when set. */
	Jobs *JobSystem

	// sub systems
	textureSystem *TextureSystem
	assetManager  *assets.AssetManager
}

func NewShaderSystem(config *ShaderSystemConfig, ts *TextureSystem, am *assets.AssetManager) (*ShaderSystem, error) {
	if config.MaxShaderCount <= 0 {
		err := fmt.Errorf("NewShaderSystem - config.MaxShaderCount must be greater than 0")
		core.LogError(err.Error())
		return nil, err
	}
	if ts == nil {
		err := fmt.Errorf("NewShaderSystem - a texture system is required")
		core.LogError(err.Error())
		return nil, err
	}

	sample := tess.New(4, 6, nil)
	sample.Ctx.Settings.IdentityLight = config.IdentityLight
	sample.Ctx.Settings.IdentityLightByte = config.IdentityLightByte

	return &ShaderSystem{
		Config:        config,
		Shaders:       make([]*metadata.Shader, 0, 256),
		SortedShaders: make([]*metadata.Shader, 0, 256),
		Lookup:        make(map[string][]*metadata.Shader),
		scripts:       make(map[string]string),
		scriptNames:   make(map[string][]string),
		videos:        make(map[int]string),
		sample:        sample,
		textureSystem: ts,
		assetManager:  am,
	}, nil
}

/**
 * @brief Creates the default shader and reads every shader script the asset
 * manager indexed. The texture system must be initialized first.
 */
func (ss *ShaderSystem) Initialize() error {
	ss.createDefaultShader()

	if ss.assetManager == nil {
		return nil
	}
	paths := ss.assetManager.Paths(metadata.ResourceTypeShaderScript)
	sort.Strings(paths)
	texts, errs := ss.readScripts(paths)
	for i, path := range paths {
		if errs[i] != nil {
			core.LogWarn("shader script '%s': %s", path, errs[i])
			continue
		}
		ss.LoadScriptText(path, texts[i])
	}
	core.LogInfo("%d shaders in %d script files", len(ss.scripts), len(paths))
	return nil
}

func (ss *ShaderSystem) Shutdown() error {
	ss.Shaders = ss.Shaders[:0]
	ss.SortedShaders = ss.SortedShaders[:0]
	ss.Lookup = make(map[string][]*metadata.Shader)
	ss.scripts = make(map[string]string)
	ss.scriptNames = make(map[string][]string)
	ss.videos = make(map[int]string)
	ss.DefaultShader = nil
	return nil
}

func (ss *ShaderSystem) createDefaultShader() {
	sh := NewShader(metadata.DEFAULT_SHADER_NAME, metadata.LIGHTMAP_NONE)
	st := newStage()
	st.Active = true
	st.Bundle[0].Images[0] = ss.textureSystem.DefaultTexture
	st.Bundle[0].NumImageAnimations = 1
	st.RGBGen = metadata.CGenIdentityLighting
	st.StateBits = metadata.StateDefault
	sh.Stages = append(sh.Stages, st)
	ss.DefaultShader = ss.FinishShader(sh)
}

func (ss *ShaderSystem) readScript(path string) (string, error) {
	res, err := ss.assetManager.LoadAsset(path, metadata.ResourceTypeShaderScript, nil)
	if err != nil {
		return "", err
	}
	text, ok := res.Data.(string)
	if !ok {
		return "", fmt.Errorf("unexpected resource data %T", res.Data)
	}
	return text, nil
}

/**
 * @brief Reads every script on the job system. Results line up with paths
 * so they can be indexed in a fixed order: a later script overrides an
 * earlier one.
 */
func (ss *ShaderSystem) readScripts(paths []string) ([]string, []error) {
	texts := make([]string, len(paths))
	errs := make([]error, len(paths))
	group := ss.Jobs.Group()
	for i, path := range paths {
		group.Go(metadata.JOB_TYPE_RESOURCE_LOAD, func() error {
			texts[i], errs[i] = ss.readScript(path)
			return nil
		})
	}
	_ = group.Wait()
	return texts, errs
}

/**
 * @brief Indexes the shader blocks of one script file. A name defined again
 * by a later script replaces the earlier text. Returns the names defined.
 */
func (ss *ShaderSystem) LoadScriptText(path string, text string) []string {
	tok := newScriptTokenizer(text)
	var names []string
	for {
		name := tok.Next(true)
		if name == "" {
			break
		}
		start := tok.Pos()
		if !tok.SkipBracedSection() {
			core.LogWarn("shader script '%s': missing closing brace for '%s'", path, name)
			break
		}
		key := shaderKey(name)
		ss.scripts[key] = text[start:tok.Pos()]
		names = append(names, key)
	}
	ss.scriptNames[path] = names
	return names
}

// shaderKey normalizes a shader name: lower case, forward slashes, no extension.
func shaderKey(name string) string {
	name = strings.ToLower(strings.ReplaceAll(name, "\\", "/"))
	if ext := filepath.Ext(name); ext != "" && !strings.Contains(ext, "/") {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

/**
 * @brief Returns the shader for name and lightmap index, creating it on first
 * use. Never returns nil: failures resolve to a shader flagged DefaultShader.
 *
 * @param name The shader or image name.
 * @param lightmapIndex A lightmap number or one of the LIGHTMAP_ constants.
 * @param mipRawImage Whether an implicit image is mipmapped and picmipped.
 */
func (ss *ShaderSystem) FindShader(name string, lightmapIndex int, mipRawImage bool) *metadata.Shader {
	if name == "" {
		return ss.DefaultShader
	}
	key := shaderKey(name)

	// a lightmap that was never loaded falls back to vertex lighting
	if lightmapIndex >= 0 && ss.textureSystem.Lightmap(lightmapIndex) == nil {
		lightmapIndex = metadata.LIGHTMAP_BY_VERTEX
	}

	for _, sh := range ss.Lookup[key] {
		// a default shader matches every lightmap so the failure is only reported once
		if sh.LightmapIndex == lightmapIndex || sh.DefaultShader {
			return sh
		}
	}

	if len(ss.Shaders) >= ss.Config.MaxShaderCount {
		core.LogWarn("%s: '%s' (limit %d)", core.ErrTooManyShaders, key, ss.Config.MaxShaderCount)
		return ss.DefaultShader
	}

	if text, ok := ss.scripts[key]; ok {
		sh, err := ss.ParseShaderText(key, text, lightmapIndex)
		if err != nil {
			core.LogWarn("%s: %s", core.ErrShaderInvalid, err)
			sh = ss.defaultedShader(key, lightmapIndex)
		}
		return ss.FinishShader(sh)
	}

	return ss.FinishShader(ss.implicitShader(key, lightmapIndex, mipRawImage))
}

// defaultedShader draws like the default shader under the failed name.
func (ss *ShaderSystem) defaultedShader(name string, lightmapIndex int) *metadata.Shader {
	sh := NewShader(name, lightmapIndex)
	sh.DefaultShader = true
	st := newStage()
	st.Active = true
	st.Bundle[0].Images[0] = ss.textureSystem.DefaultTexture
	st.Bundle[0].NumImageAnimations = 1
	st.RGBGen = metadata.CGenIdentityLighting
	st.StateBits = metadata.StateDefault
	sh.Stages = append(sh.Stages, st)
	return sh
}

// implicitShader builds a shader for an image that has no script definition.
func (ss *ShaderSystem) implicitShader(name string, lightmapIndex int, mipRawImage bool) *metadata.Shader {
	flags := metadata.TextureFlagClampToEdge
	if mipRawImage {
		flags = metadata.TextureFlagMipmap | metadata.TextureFlagPicmip
	}
	image, err := ss.textureSystem.Acquire(name, flags)
	if err != nil {
		core.LogDebug("couldn't find image file for shader '%s'", name)
		return ss.defaultedShader(name, lightmapIndex)
	}

	sh := NewShader(name, lightmapIndex)
	st := newStage()
	st.Active = true
	st.Bundle[0].Images[0] = image
	st.Bundle[0].NumImageAnimations = 1
	st.StateBits = metadata.StateDefault

	switch {
	case lightmapIndex == metadata.LIGHTMAP_NONE:
		// dynamic colors at vertexes
		st.RGBGen = metadata.CGenLightingDiffuse
	case lightmapIndex == metadata.LIGHTMAP_BY_VERTEX:
		// explicit colors at vertexes
		st.RGBGen = metadata.CGenExactVertex
		st.AlphaGen = metadata.AGenSkip
	case lightmapIndex == metadata.LIGHTMAP_2D:
		st.RGBGen = metadata.CGenVertex
		st.AlphaGen = metadata.AGenVertex
		st.StateBits = metadata.DepthTestDisable | metadata.SrcBlendSrcAlpha | metadata.DstBlendOneMinusSrcAlpha
	default:
		// two pass lightmap: the lightmap is scaled for identity light on creation
		lm := newStage()
		lm.Active = true
		lm.Bundle[0].Images[0] = ss.textureSystem.Lightmap(lightmapIndex)
		lm.Bundle[0].NumImageAnimations = 1
		lm.Bundle[0].IsLightmap = true
		lm.RGBGen = metadata.CGenIdentity
		lm.StateBits = metadata.StateDefault
		sh.Stages = append(sh.Stages, lm)

		st.RGBGen = metadata.CGenIdentity
		st.StateBits |= metadata.SrcBlendDstColor | metadata.DstBlendZero
	}
	sh.Stages = append(sh.Stages, st)
	return sh
}

/**
 * @brief Registers a shader for 2D and entity use, with mipmapped images.
 * @return The shader handle, 0 when the shader could not be found.
 */
func (ss *ShaderSystem) RegisterShader(name string) int {
	return ss.register(name, true)
}

/**
 * @brief Registers a shader whose implicit image is neither mipmapped nor
 * picmipped, for console and menu art.
 */
func (ss *ShaderSystem) RegisterShaderNoMip(name string) int {
	return ss.register(name, false)
}

func (ss *ShaderSystem) register(name string, mipRaw bool) int {
	if len(name) >= metadata.MAX_QPATH {
		core.LogWarn("shader name exceeds MAX_QPATH: '%s'", name)
		return 0
	}
	sh := ss.FindShader(name, metadata.LIGHTMAP_2D, mipRaw)
	// returning the default handle lets callers test for a missing shader
	if sh.DefaultShader {
		return 0
	}
	return sh.Index
}

/**
 * @brief Resolves a handle returned by RegisterShader. Out of range handles
 * resolve to the default shader.
 */
func (ss *ShaderSystem) GetShaderByHandle(handle int) *metadata.Shader {
	if handle < 0 || handle >= len(ss.Shaders) {
		core.LogWarn("GetShaderByHandle: out of range handle %d", handle)
		return ss.DefaultShader
	}
	return ss.Shaders[handle]
}

// SortedShader resolves the shader number stored in a sort key.
func (ss *ShaderSystem) SortedShader(sortedIndex int) *metadata.Shader {
	if sortedIndex < 0 || sortedIndex >= len(ss.SortedShaders) {
		return ss.DefaultShader
	}
	return ss.SortedShaders[sortedIndex]
}

/**
 * @brief Makes every lightmap variant of oldName draw as newName from now on.
 * timeOffset shifts the shader time of the replacement.
 */
func (ss *ShaderSystem) RemapShader(oldName, newName string, timeOffset float64) error {
	old := ss.FindShader(oldName, metadata.LIGHTMAP_NONE, true)
	if old.DefaultShader {
		old = ss.FindShader(oldName, metadata.LIGHTMAP_BY_VERTEX, true)
	}
	replacement := ss.FindShader(newName, metadata.LIGHTMAP_NONE, true)
	if replacement.DefaultShader {
		replacement = ss.FindShader(newName, metadata.LIGHTMAP_BY_VERTEX, true)
	}
	if old.DefaultShader || replacement.DefaultShader {
		return fmt.Errorf("RemapShader: shader '%s' or '%s' not found", oldName, newName)
	}

	for _, sh := range ss.Lookup[old.Name] {
		if sh.Name == replacement.Name {
			sh.RemappedShader = nil
		} else {
			sh.RemappedShader = replacement
		}
	}
	replacement.TimeOffset = timeOffset
	return nil
}

/**
 * @brief Opens a video stream for a videoMap stage and returns its handle.
 * Frames are uploaded into the scratch texture of the same handle.
 */
func (ss *ShaderSystem) OpenVideo(name string) (int, error) {
	handle, err := ss.textureSystem.CreateScratch()
	if err != nil {
		return -1, err
	}
	if name == "" {
		name = "video-" + uuid.NewString()
	}
	ss.videos[handle] = name
	return handle, nil
}

// CloseVideo forgets a video stream and releases its scratch texture.
func (ss *ShaderSystem) CloseVideo(handle int) {
	if _, ok := ss.videos[handle]; !ok {
		return
	}
	delete(ss.videos, handle)
	ss.textureSystem.ReleaseScratch(handle)
}

// closeVideos releases the video streams the stages of sh opened.
func (ss *ShaderSystem) closeVideos(sh *metadata.Shader) {
	for _, st := range sh.Stages {
		if st == nil {
			continue
		}
		for b := range st.Bundle {
			if st.Bundle[b].IsVideoMap {
				ss.CloseVideo(st.Bundle[b].VideoMapHandle)
			}
		}
	}
}

// VideoName returns the stream a video handle was opened for.
func (ss *ShaderSystem) VideoName(handle int) (string, bool) {
	name, ok := ss.videos[handle]
	return name, ok
}

/**
 * @brief Re-reads changed script files and rebuilds every registered shader
 * they define. Rebuilt shaders keep their handle and sorted index unless the
 * sort class changed, in which case the whole sort order is rebuilt.
 * Must not run while the back end is drawing.
 *
 * @return The number of registered shaders that were rebuilt.
 */
func (ss *ShaderSystem) ReloadScripts(paths []string) int {
	paths = slices.Sorted(slices.Values(paths))
	var changed []string
	texts, errs := ss.readScripts(paths)
	for i, path := range paths {
		if errs[i] != nil {
			core.LogWarn("reloading shader script '%s': %s", path, errs[i])
			continue
		}
		old := ss.scriptNames[path]
		ss.LoadScriptText(path, texts[i])
		// blocks removed from the file no longer have a definition
		for _, name := range old {
			if !slices.Contains(ss.scriptNames[path], name) {
				delete(ss.scripts, name)
			}
		}
		for _, name := range ss.scriptNames[path] {
			if !slices.Contains(changed, name) {
				changed = append(changed, name)
			}
		}
	}

	rebuilt := 0
	resort := false
	for _, name := range changed {
		text, ok := ss.scripts[name]
		if !ok {
			continue
		}
		for _, sh := range ss.Lookup[name] {
			// parsing opens the streams again; their handles get reused
			ss.closeVideos(sh)
			fresh, err := ss.ParseShaderText(name, text, sh.LightmapIndex)
			if err != nil {
				core.LogWarn("%s: %s", core.ErrShaderInvalid, err)
				fresh = ss.defaultedShader(name, sh.LightmapIndex)
			}
			ss.finalize(fresh)
			// a shader that used to fail must stay keyed to its own lightmap index
			fresh.LightmapIndex = sh.LightmapIndex
			fresh.Index = sh.Index
			fresh.SortedIndex = sh.SortedIndex
			fresh.RemappedShader = sh.RemappedShader
			if fresh.Sort != sh.Sort {
				resort = true
			}
			*sh = *fresh
			rebuilt++
		}
	}

	if resort {
		ss.resortShaders()
	}
	if rebuilt > 0 {
		core.LogInfo("reloaded %d shaders from %d scripts", rebuilt, len(paths))
	}
	return rebuilt
}

// resortShaders rebuilds the sort order from scratch. Only valid when no
// sort keys are queued.
func (ss *ShaderSystem) resortShaders() {
	slices.SortStableFunc(ss.SortedShaders, func(a, b *metadata.Shader) int {
		switch {
		case a.Sort < b.Sort:
			return -1
		case a.Sort > b.Sort:
			return 1
		}
		return a.Index - b.Index
	})
	for i, sh := range ss.SortedShaders {
		sh.SortedIndex = i
	}
}
