package slipstream

import "encoding/json"

// Module kinds as reported by the catalog.
const (
	ModuleKindProject     = "project"
	ModuleKindComponent   = "component"
	ModuleKindApplication = "application"
)

// A Run is a deployment of a module. Attrs holds the full attribute set as
// returned by the service, including fields this struct doesn't name.
type Run struct {
	ID      string
	Module  string
	Status  string
	Started string
	Tags    []string
	Attrs   map[string]interface{}
}

// UnmarshalJSON keeps the raw attribute map alongside the named fields.
func (r *Run) UnmarshalJSON(data []byte) error {
	type run struct {
		ID      string   `json:"id"`
		Module  string   `json:"module"`
		Status  string   `json:"status"`
		Started string   `json:"started"`
		Tags    []string `json:"tags"`
	}

	var named run
	if err := json.Unmarshal(data, &named); err != nil {
		return err
	}

	attrs := map[string]interface{}{}
	if err := json.Unmarshal(data, &attrs); err != nil {
		return err
	}

	r.ID = named.ID
	r.Module = named.Module
	r.Status = named.Status
	r.Started = named.Started
	r.Tags = named.Tags
	r.Attrs = attrs
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON: named fields win over Attrs.
func (r Run) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{}
	for k, v := range r.Attrs {
		out[k] = v
	}
	out["id"] = r.ID
	out["module"] = r.Module
	out["status"] = r.Status
	if r.Started != "" {
		out["started"] = r.Started
	}
	if r.Tags != nil {
		out["tags"] = r.Tags
	}
	return json.Marshal(out)
}

// A Module is an element of the catalog: a project, a component or an
// application. Nodes is only set for applications, Parameters only for
// components. Children is only set for projects.
type Module struct {
	Path        string                 `json:"path"`
	Version     int                    `json:"version"`
	Kind        string                 `json:"kind"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Nodes       map[string]ModuleNode  `json:"nodes,omitempty"`
	Children    []Module               `json:"children,omitempty"`
}

// A ModuleNode is a named sub-node of an application module.
type ModuleNode struct {
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// A User is the account profile. SSHPublicKeys is the raw newline-joined
// public key blob; the service has no finer-grained key storage.
type User struct {
	Username         string   `json:"username"`
	ConfiguredClouds []string `json:"configuredClouds"`
	SSHPublicKeys    string   `json:"sshPublicKeys"`
}

// A DeployRequest describes the run to start. Cloud and Parameters apply to
// component deployments; CloudByNode and ParametersByNode apply to
// application deployments, keyed by sub-node name.
type DeployRequest struct {
	Path             string                            `json:"path"`
	Cloud            string                            `json:"cloud,omitempty"`
	CloudByNode      map[string]string                 `json:"cloudByNode,omitempty"`
	Parameters       map[string]interface{}            `json:"parameters,omitempty"`
	ParametersByNode map[string]map[string]interface{} `json:"parametersByNode,omitempty"`
	Tags             []string                          `json:"tags,omitempty"`
	KeepRunning      string                            `json:"keepRunning,omitempty"`
	Multiplicity     int                               `json:"multiplicity,omitempty"`
	TolerateFailures int                               `json:"tolerateFailures,omitempty"`
	CheckSSHKey      bool                              `json:"checkSSHKey,omitempty"`
	Scalable         bool                              `json:"scalable,omitempty"`
}

// A RunParameter is a single runtime parameter of a run, such as ss:state.
type RunParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// A Collection is the result of a CIMI resource search: the total count and
// the matched resources as raw attribute maps.
type Collection struct {
	Count     int
	Resources []map[string]interface{}
}
