package models

// Capabilities lists the repository operations a resource implements.
type Capabilities struct {
	FindAll bool `json:"find_all" yaml:"find_all"`
	FindOne bool `json:"find_one" yaml:"find_one"`
	Save    bool `json:"save" yaml:"save"`
	Delete  bool `json:"delete" yaml:"delete"`
}

// FullCapabilities enables every repository operation.
func FullCapabilities() Capabilities {
	return Capabilities{FindAll: true, FindOne: true, Save: true, Delete: true}
}

// Resource describes a repository exposed over HTTP.
type Resource struct {
	// Name is the collection rel, e.g. "people".
	Name string `json:"name" yaml:"name" validate:"required"`
	// Path is the URL segment below the base path. Defaults to Name.
	Path         string       `json:"path" yaml:"path" validate:"omitempty,resource_path"`
	Exported     bool         `json:"exported" yaml:"exported"`
	Capabilities Capabilities `json:"capabilities" yaml:"capabilities"`
	CrossOrigin  *CrossOrigin `json:"cross_origin,omitempty" yaml:"-"`
}

// CrossOriginMetadata returns the resource's cross-origin metadata, or nil.
func (r *Resource) CrossOriginMetadata() *CrossOrigin {
	if r == nil {
		return nil
	}
	return r.CrossOrigin
}

// RoutePath returns the URL segment the resource is served under.
func (r *Resource) RoutePath() string {
	if r.Path != "" {
		return r.Path
	}
	return r.Name
}
