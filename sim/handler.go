package sim

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pborman/uuid"

	"github.com/sixsq/slipstream-cloud/slipstream"
)

// Handler returns the HTTP handler for the simulated service.
func (s *Service) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/session", s.handleLogin).Methods("POST")

	r.HandleFunc("/run", s.requireSession(s.handleRunsList)).Methods("GET")
	r.HandleFunc("/run", s.requireSession(s.handleDeploy)).Methods("POST")
	r.HandleFunc("/run/{id}", s.requireSession(s.handleRunGet)).Methods("GET")
	r.HandleFunc("/run/{id}", s.requireSession(s.handleTerminate)).Methods("DELETE")
	r.HandleFunc("/run/{id}/parameter/{name}", s.requireSession(s.handleRunParameter)).Methods("GET")

	r.HandleFunc("/module", s.requireSession(s.handleModulesList)).Methods("GET")
	r.HandleFunc("/module/{path:.*}", s.requireSession(s.handleModuleGet)).Methods("GET")
	r.HandleFunc("/module/{path:.*}", s.requireSession(s.handleModuleDelete)).Methods("DELETE")

	r.HandleFunc("/api/{resourceType}", s.requireSession(s.handleSearch)).Methods("GET")

	r.HandleFunc("/user/{username}", s.requireSession(s.handleUserGet)).Methods("GET")
	r.HandleFunc("/user/{username}", s.requireSession(s.handleUserPut)).Methods("PUT")

	return r
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, username string)

func (s *Service) requireSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := s.sessionUser(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "no valid session")
			return
		}
		h(w, r, username)
	}
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionTemplate struct {
			Href     string `json:"href"`
			Username string `json:"username"`
			Password string `json:"password"`
			Key      string `json:"key"`
			Secret   string `json:"secret"`
		} `json:"sessionTemplate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "could not parse session request")
		return
	}

	template := body.SessionTemplate
	var username string

	switch template.Href {
	case "session-template/internal":
		if !s.checkPassword(template.Username, template.Password) {
			respondError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		username = template.Username
	case "session-template/api-key":
		var ok bool
		username, ok = s.checkAPIKey(template.Key, template.Secret)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid key or secret")
			return
		}
	default:
		respondError(w, http.StatusBadRequest, "unknown session template "+template.Href)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:  sessionCookie,
		Value: s.openSession(username),
		Path:  "/",
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"username": username})
}

func (s *Service) handleRunsList(w http.ResponseWriter, r *http.Request, username string) {
	s.mutex.Lock()
	runs := make([]slipstream.Run, 0, len(s.runs))
	for _, record := range s.runs {
		runs = append(runs, record.run)
	}
	s.mutex.Unlock()

	respondOK(w, map[string]interface{}{"runs": runs})
}

func (s *Service) handleDeploy(w http.ResponseWriter, r *http.Request, username string) {
	var req slipstream.DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "could not parse deploy request")
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.resolveModule(req.Path); !ok {
		respondError(w, http.StatusNotFound, "unknown module "+req.Path)
		return
	}

	id := uuid.New()
	s.runs[id] = &runRecord{
		run: slipstream.Run{
			ID:     id,
			Module: req.Path,
			Status: "initializing",
			Tags:   req.Tags,
			Attrs: map[string]interface{}{
				"user": username,
			},
		},
	}
	s.lastDeploy = &req

	w.Header().Set("Location", "/run/"+id)
	w.WriteHeader(http.StatusCreated)
}

func (s *Service) handleRunGet(w http.ResponseWriter, r *http.Request, username string) {
	s.mutex.Lock()
	record, ok := s.runs[mux.Vars(r)["id"]]
	s.mutex.Unlock()

	if !ok {
		respondError(w, http.StatusNotFound, "unknown run")
		return
	}

	respondOK(w, record.run)
}

func (s *Service) handleTerminate(w http.ResponseWriter, r *http.Request, username string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id := mux.Vars(r)["id"]
	record, ok := s.runs[id]
	if !ok {
		respondError(w, http.StatusNotFound, "unknown run")
		return
	}

	record.run.Status = "cancelled"
	record.states = nil
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleRunParameter(w http.ResponseWriter, r *http.Request, username string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	vars := mux.Vars(r)
	record, ok := s.runs[vars["id"]]
	if !ok {
		respondError(w, http.StatusNotFound, "unknown run")
		return
	}

	name := vars["name"]
	var value string

	switch name {
	case "ss:state":
		if len(record.states) > 0 {
			value = record.states[0]
			if len(record.states) > 1 {
				record.states = record.states[1:]
			}
		} else {
			value = record.run.Status
		}
	case "ss:abort":
		value = record.abort
	default:
		respondError(w, http.StatusNotFound, "unknown parameter "+name)
		return
	}

	respondOK(w, slipstream.RunParameter{Name: name, Value: value})
}

func (s *Service) handleModulesList(w http.ResponseWriter, r *http.Request, username string) {
	s.mutex.Lock()
	var modules []slipstream.Module
	for _, module := range s.modules {
		if module.Kind == slipstream.ModuleKindProject {
			continue
		}
		modules = append(modules, module)
	}
	s.mutex.Unlock()

	respondOK(w, map[string]interface{}{"modules": modules})
}

func (s *Service) handleModuleGet(w http.ResponseWriter, r *http.Request, username string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	module, ok := s.resolveModule(mux.Vars(r)["path"])
	if !ok {
		respondError(w, http.StatusNotFound, "unknown module")
		return
	}

	if module.Kind == slipstream.ModuleKindProject {
		module.Children = s.childrenOf(module.Path)
	}

	respondOK(w, module)
}

func (s *Service) handleModuleDelete(w http.ResponseWriter, r *http.Request, username string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	module, ok := s.resolveModule(mux.Vars(r)["path"])
	if !ok {
		respondError(w, http.StatusNotFound, "unknown module")
		return
	}

	delete(s.modules, module.Path)
	w.WriteHeader(http.StatusNoContent)
}

// childrenOf returns the modules exactly one path segment below the project.
func (s *Service) childrenOf(projectPath string) []slipstream.Module {
	var children []slipstream.Module
	prefix := projectPath + "/"
	for path, module := range s.modules {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if strings.Contains(path[len(prefix):], "/") {
			continue
		}
		child := module
		child.Children = nil
		children = append(children, child)
	}
	return children
}

func (s *Service) handleSearch(w http.ResponseWriter, r *http.Request, username string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var resources []map[string]interface{}
	resourceType := mux.Vars(r)["resourceType"]

	switch resourceType {
	case "serviceOffers":
		resources = s.serviceOffers
	case "virtualMachines":
		resources = s.virtualMachines
	default:
		respondError(w, http.StatusNotFound, "unknown resource type "+resourceType)
		return
	}

	matched, err := applyFilter(resources, r.URL.Query().Get("$filter"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondOK(w, map[string]interface{}{
		"count":      len(matched),
		resourceType: matched,
	})
}

func (s *Service) handleUserGet(w http.ResponseWriter, r *http.Request, username string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	user, ok := s.users[mux.Vars(r)["username"]]
	if !ok {
		respondError(w, http.StatusNotFound, "unknown user")
		return
	}

	respondOK(w, slipstream.User{
		Username:         user.Username,
		ConfiguredClouds: user.ConfiguredClouds,
		SSHPublicKeys:    user.SSHPublicKeys,
	})
}

func (s *Service) handleUserPut(w http.ResponseWriter, r *http.Request, username string) {
	var body struct {
		SSHPublicKeys *string `json:"sshPublicKeys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "could not parse user update")
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	user, ok := s.users[mux.Vars(r)["username"]]
	if !ok {
		respondError(w, http.StatusNotFound, "unknown user")
		return
	}

	if body.SSHPublicKeys != nil {
		user.SSHPublicKeys = *body.SSHPublicKeys
	}

	w.WriteHeader(http.StatusNoContent)
}

// applyFilter evaluates a conjunction of attribute="value" clauses against
// the resources. Nested attributes use "/" as the separator, e.g.
// connector/href.
func applyFilter(resources []map[string]interface{}, filter string) ([]map[string]interface{}, error) {
	matched := make([]map[string]interface{}, 0, len(resources))

	if filter == "" {
		return append(matched, resources...), nil
	}

	type clause struct {
		attribute string
		value     string
	}

	var clauses []clause
	for _, raw := range strings.Split(filter, " and ") {
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			return nil, &filterError{raw}
		}
		value, err := strconv.Unquote(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, &filterError{raw}
		}
		clauses = append(clauses, clause{attribute: strings.TrimSpace(parts[0]), value: value})
	}

	for _, resource := range resources {
		ok := true
		for _, c := range clauses {
			if resourceAttr(resource, c.attribute) != c.value {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, resource)
		}
	}

	return matched, nil
}

type filterError struct {
	clause string
}

func (e *filterError) Error() string {
	return "cannot parse filter clause: " + e.clause
}

// resourceAttr walks nested maps along "/" separated attribute segments.
func resourceAttr(resource map[string]interface{}, attribute string) string {
	segments := strings.Split(attribute, "/")

	current := interface{}(resource)
	for _, segment := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current = m[segment]
	}

	value, _ := current.(string)
	return value
}

func respondOK(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
