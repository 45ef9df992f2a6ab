package assets

import "github.com/spaghettifunk/tessera/engine/renderer/metadata"

/**
 * @brief Reads one kind of renderer asset from disk. The asset manager indexes
 * a file under the type of the loader that claims its extension.
 */
type Loader interface {
	/** @brief Lower case file extensions, with the dot, this loader reads. */
	Extensions() []string
	/**
	 * @brief Reads the file at path. params is loader specific and may be nil.
	 */
	Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error)
	Unload(*metadata.Resource) error
}

// extensionTable maps a file extension to the type of the loader claiming it.
// A later loader claiming an extension takes it over.
type extensionTable map[string]metadata.ResourceType

func (et extensionTable) add(assetType metadata.ResourceType, loader Loader) {
	for _, ext := range loader.Extensions() {
		et[ext] = assetType
	}
}

func (et extensionTable) lookup(ext string) metadata.ResourceType {
	if t, ok := et[ext]; ok {
		return t
	}
	return metadata.ResourceTypeNone
}
