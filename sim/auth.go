package sim

import (
	"crypto/subtle"
	"net/http"

	"github.com/pborman/uuid"
	"golang.org/x/crypto/scrypt"
)

// sessionCookie is the cookie the real service issues at login.
const sessionCookie = "com.sixsq.slipstream.cookie"

// checkPassword validates internal-method credentials.
func (s *Service) checkPassword(username, password string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	user, ok := s.users[username]
	if !ok || user.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) == 1
}

// checkAPIKey validates api-key-method credentials against the stored
// scrypt hash and returns the matching username.
func (s *Service) checkAPIKey(key, secret string) (string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, user := range s.users {
		if user.APIKey != key {
			continue
		}

		hash, err := scrypt.Key([]byte(secret), user.apiSecretSalt, 16384, 8, 1, 32)
		if err != nil {
			return "", false
		}
		if subtle.ConstantTimeCompare(hash, user.apiSecretHash) == 1 {
			return user.Username, true
		}
		return "", false
	}

	return "", false
}

// openSession creates a session for the user and returns its cookie token.
func (s *Service) openSession(username string) string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	token := uuid.New()
	s.sessions[token] = username
	return token
}

// sessionUser resolves the session cookie of a request to a username.
func (s *Service) sessionUser(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	username, ok := s.sessions[cookie.Value]
	return username, ok
}
