package loaders

import (
	"os"

	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// ShaderScriptLoader reads a shader script as text. Parsing the blocks is up
// to the shader system.
type ShaderScriptLoader struct{}

func (sl *ShaderScriptLoader) Extensions() []string {
	return []string{".shader"}
}

func (sl *ShaderScriptLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &metadata.Resource{
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     string(data),
	}, nil
}

func (sl *ShaderScriptLoader) Unload(res *metadata.Resource) error {
	res.Data = nil
	res.DataSize = 0
	return nil
}
