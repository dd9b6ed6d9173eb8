// Package sim implements an in-memory simulator of the SlipStream HTTP API.
//
// It exists so the client and provider can be exercised without a real
// service: tests mount Handler() on an httptest server, and cmd/sscloud-sim
// serves it for local development. State lives in maps guarded by one mutex
// and disappears with the process.
package sim

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/pborman/uuid"
	"golang.org/x/crypto/scrypt"

	"github.com/sixsq/slipstream-cloud/slipstream"
)

// A Service holds the simulated state: accounts, the module catalog, CIMI
// resources and runs.
type Service struct {
	mutex sync.Mutex

	users           map[string]*account
	modules         map[string]slipstream.Module
	serviceOffers   []map[string]interface{}
	virtualMachines []map[string]interface{}
	runs            map[string]*runRecord
	sessions        map[string]string

	lastDeploy *slipstream.DeployRequest
}

type account struct {
	Username         string
	Password         string
	APIKey           string
	apiSecretHash    []byte
	apiSecretSalt    []byte
	ConfiguredClouds []string
	SSHPublicKeys    string
}

type runRecord struct {
	run slipstream.Run

	// states is the remaining ss:state script; the last value sticks.
	states []string
	abort  string
}

// New creates an empty simulator.
func New() *Service {
	return &Service{
		users:    make(map[string]*account),
		modules:  make(map[string]slipstream.Module),
		runs:     make(map[string]*runRecord),
		sessions: make(map[string]string),
	}
}

// AddUser creates an account with a password and the given configured
// clouds.
func (s *Service) AddUser(username, password string, clouds ...string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.users[username] = &account{
		Username:         username,
		Password:         password,
		ConfiguredClouds: clouds,
	}
}

// IssueAPIKey generates an api-key credential for the user and returns the
// key and its secret. Only the scrypt hash of the secret is kept.
func (s *Service) IssueAPIKey(username string) (string, string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	user, ok := s.users[username]
	if !ok {
		return "", "", fmt.Errorf("sim: unknown user %q", username)
	}

	salt := make([]byte, 32)
	secret := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", err
	}
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}

	encodedSecret := hex.EncodeToString(secret)
	hash, err := scrypt.Key([]byte(encodedSecret), salt, 16384, 8, 1, 32)
	if err != nil {
		return "", "", err
	}

	user.APIKey = "credential/" + uuid.New()
	user.apiSecretHash = hash
	user.apiSecretSalt = salt

	return user.APIKey, encodedSecret, nil
}

// SetUserSSHKeys seeds the newline-joined SSH public key blob of a user.
func (s *Service) SetUserSSHKeys(username, blob string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if user, ok := s.users[username]; ok {
		user.SSHPublicKeys = blob
	}
}

// UserSSHKeys returns the current SSH public key blob of a user.
func (s *Service) UserSSHKeys(username string) string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if user, ok := s.users[username]; ok {
		return user.SSHPublicKeys
	}
	return ""
}

// AddModule puts a catalog element into the simulated catalog.
func (s *Service) AddModule(module slipstream.Module) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.modules[module.Path] = module
}

// AddServiceOffer adds a serviceOffers resource for CIMI search.
func (s *Service) AddServiceOffer(offer map[string]interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.serviceOffers = append(s.serviceOffers, offer)
}

// AddVirtualMachine adds a virtualMachines resource for CIMI search.
func (s *Service) AddVirtualMachine(vm map[string]interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.virtualMachines = append(s.virtualMachines, vm)
}

// ScriptRunStates sets the ss:state values that successive parameter polls
// of the run will observe. The last value repeats forever.
func (s *Service) ScriptRunStates(runID string, states ...string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if record, ok := s.runs[runID]; ok {
		record.states = states
	}
}

// SetRunAbort makes the run report an abort through its ss:abort parameter.
func (s *Service) SetRunAbort(runID, reason string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if record, ok := s.runs[runID]; ok {
		record.abort = reason
	}
}

// SetRunStatus sets the deployment status reported for the run itself.
func (s *Service) SetRunStatus(runID, status string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if record, ok := s.runs[runID]; ok {
		record.run.Status = status
	}
}

// LastDeploy returns the most recent deploy request the simulator accepted,
// or nil.
func (s *Service) LastDeploy() *slipstream.DeployRequest {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.lastDeploy
}

// resolveModule finds a module by path, accepting an optional trailing
// version segment ("some/path/3").
func (s *Service) resolveModule(path string) (slipstream.Module, bool) {
	path = strings.Trim(path, "/")

	if module, ok := s.modules[path]; ok {
		return module, true
	}

	idx := strings.LastIndex(path, "/")
	if idx > 0 && isNumeric(path[idx+1:]) {
		if module, ok := s.modules[path[:idx]]; ok {
			return module, true
		}
	}

	return slipstream.Module{}, false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
