package engine

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX int
	// Window starting position y axis, if applicable.
	StartPosY int
	// Window starting width, if applicable.
	StartWidth int
	// Window starting height, if applicable.
	StartHeight int
	// The application name used in windowing, if applicable.
	Name string
	// Renderer configuration file (.toml or .yaml); defaults are used when empty.
	ConfigPath string
	// Asset roots overriding the configured ones, if any.
	AssetRoots []string
	// Frames per second the main loop is limited to, 0 for no limit.
	TargetFPS int
}
