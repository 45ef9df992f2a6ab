package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/tessera/engine/assets/loaders"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

type AssetInfo struct {
	/** @brief Lower case path relative to its root, without extension. */
	Name       string
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

/**
 * @brief Indexes the files under a set of asset roots and loads them through
 * the loader registered for their type. When watching is enabled, shader
 * scripts that change on disk are queued until ChangedScripts drains them.
 */
type AssetManager struct {
	roots   []string
	assets  map[string]AssetInfo
	byName  map[metadata.ResourceType]map[string]string
	loaders map[metadata.ResourceType]Loader
	exts    extensionTable

	mutex sync.RWMutex

	watch    bool
	done     chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	started  bool
	changed  map[string]struct{}
}

func NewAssetManager(watch bool) (*AssetManager, error) {
	am := &AssetManager{
		assets:  make(map[string]AssetInfo),
		byName:  make(map[metadata.ResourceType]map[string]string),
		loaders: make(map[metadata.ResourceType]Loader),
		exts:    make(extensionTable),
		watch:   watch,
		done:    make(chan struct{}),
		changed: make(map[string]struct{}),
	}
	if watch {
		fsWatch, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		am.fsnotify = fsWatch
	}

	// Register loaders
	am.registerLoader(metadata.ResourceTypeShaderScript, &loaders.ShaderScriptLoader{})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(metadata.ResourceTypeBitmapFont, &loaders.BitmapFontLoader{})

	return am, nil
}

// Initialize indexes every root. Roots that do not exist are skipped with a
// warning so a renderer can start without any assets.
func (am *AssetManager) Initialize(roots ...string) error {
	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			core.LogWarn("asset root '%s' not available: %s", root, err)
			continue
		}
		am.roots = append(am.roots, root)
		if err := am.watchRecursive(root, false); err != nil {
			return err
		}
	}
	if am.watch && !am.started {
		am.started = true
		go am.start()
	}
	return nil
}

// Shutdown stops the watcher.
func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	if am.fsnotify != nil && !am.started {
		return am.fsnotify.Close()
	}
	return nil
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return errors.New("asset manager already closed")
	}
	return am.watchRecursive(name, false)
}

// Register loaders for each asset type. Only files with an extension claimed
// by a loader are indexed.
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
	am.exts.add(assetType, loader)
}

// Find resolves a name to an indexed file of the given type. The extension of
// name, if any, is ignored so "textures/wall.tga" finds "textures/wall.png".
func (am *AssetManager) Find(name string, resourceType metadata.ResourceType) (string, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	path, ok := am.byName[resourceType][assetName(name)]
	return path, ok
}

// Paths lists every indexed file of a type in a stable order.
func (am *AssetManager) Paths(resourceType metadata.ResourceType) []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	out := make([]string, 0, len(am.byName[resourceType]))
	for _, p := range am.byName[resourceType] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Load an asset by name using the appropriate loader
func (am *AssetManager) Load(name string, resourceType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	path, ok := am.Find(name, resourceType)
	if !ok {
		return nil, fmt.Errorf("asset not found: %s", name)
	}
	return am.LoadAsset(path, resourceType, params)
}

// LoadAsset loads the file at path, which does not need to be indexed.
func (am *AssetManager) LoadAsset(path string, resourceType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	loader, loaderExists := am.loaders[resourceType]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", resourceType)
	}

	res, err := loader.Load(path, resourceType, params)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	if asset, exists := am.assets[path]; exists {
		asset.LastLoaded = time.Now()
		am.assets[path] = asset
	}
	am.mutex.Unlock()

	res.Name = assetName(am.relative(path))
	return res, nil
}

func (am *AssetManager) UnloadAsset(asset *metadata.Resource, resourceType metadata.ResourceType) error {
	loader, ok := am.loaders[resourceType]
	if !ok {
		return fmt.Errorf("no loader registered for asset type: %s", resourceType)
	}
	return loader.Unload(asset)
}

// ChangedScripts returns the shader scripts modified since the last call.
func (am *AssetManager) ChangedScripts() []string {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	if len(am.changed) == 0 {
		return nil
	}
	out := make([]string, 0, len(am.changed))
	for p := range am.changed {
		out = append(out, p)
	}
	am.changed = make(map[string]struct{})
	sort.Strings(out)
	return out
}

func (am *AssetManager) start() {
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.addRecursive(e.Name); err != nil {
						core.LogWarn("failed to watch '%s': %s", e.Name, err)
					}
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(e.Name, true)
			}
			//Can't stat a deleted directory, so just pretend that it's always a directory and
			//try to remove from the watch list
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
				_ = am.fsnotify.Remove(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

// watchRecursive indexes every file under path and, when watching, adds all
// directories to the watch list.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if am.fsnotify == nil {
				return nil
			}
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		if unWatch {
			am.removeAsset(walkPath)
		} else {
			am.handleFileEvent(walkPath, false)
		}
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string, modified bool) {
	assetType := am.exts.lookup(strings.ToLower(filepath.Ext(path)))
	if assetType == metadata.ResourceTypeNone {
		return
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()

	name := assetName(am.relative(path))
	am.assets[path] = AssetInfo{
		Name: name,
		Path: path,
		Type: assetType,
	}
	if am.byName[assetType] == nil {
		am.byName[assetType] = make(map[string]string)
	}
	if _, exists := am.byName[assetType][name]; !exists || modified {
		am.byName[assetType][name] = path
	}
	if modified && assetType == metadata.ResourceTypeShaderScript {
		am.changed[path] = struct{}{}
	}
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	asset, ok := am.assets[path]
	if !ok {
		return
	}
	delete(am.assets, path)
	if am.byName[asset.Type][asset.Name] == path {
		delete(am.byName[asset.Type], asset.Name)
	}
}

func (am *AssetManager) relative(path string) string {
	for _, root := range am.roots {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return path
}

// assetName normalizes a path to the lower case, slash separated form
// without extension used for lookups.
func assetName(path string) string {
	path = filepath.ToSlash(path)
	path = strings.TrimSuffix(path, filepath.Ext(path))
	return strings.ToLower(path)
}
