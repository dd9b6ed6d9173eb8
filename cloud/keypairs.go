package cloud

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/net/context"
)

// The account stores all public keys as one newline-joined blob in the user
// profile. There is no partial-update primitive upstream, so every mutation
// re-reads the blob, edits it and pushes the whole thing back.

// ListKeyPairs returns the SSH public keys registered to the account. A
// malformed entry in the key blob fails the whole listing with a
// *KeyFormatError naming the entry.
func (p *SlipStreamProvider) ListKeyPairs(ctx context.Context) ([]KeyPair, error) {
	user, err := p.api.GetUser(ctx)
	if err != nil {
		return nil, err
	}

	var keyPairs []KeyPair
	for _, entry := range splitKeyBlob(user.SSHPublicKeys) {
		keyPair, err := keyPairFromPublicKey(entry, "")
		if err != nil {
			return nil, err
		}
		keyPairs = append(keyPairs, keyPair)
	}

	return keyPairs, nil
}

// GetKeyPair returns the key pair with the given name, or ErrKeyPairNotFound.
func (p *SlipStreamProvider) GetKeyPair(ctx context.Context, name string) (KeyPair, error) {
	keyPairs, err := p.ListKeyPairs(ctx)
	if err != nil {
		return KeyPair{}, err
	}

	for _, keyPair := range keyPairs {
		if keyPair.Name == name {
			return keyPair, nil
		}
	}

	return KeyPair{}, ErrKeyPairNotFound
}

// CreateKeyPair generates a 2048-bit RSA key pair locally, registers the
// public half to the account under the given name, and returns both halves.
// The private key is returned once and not stored anywhere.
func (p *SlipStreamProvider) CreateKeyPair(ctx context.Context, name string) (KeyPair, error) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return KeyPair{}, err
	}

	sshPublicKey, err := ssh.NewPublicKey(&rsaKey.PublicKey)
	if err != nil {
		return KeyPair{}, err
	}
	publicKeyLine := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPublicKey)))

	keyPair, err := keyPairFromPublicKey(publicKeyLine, name)
	if err != nil {
		return KeyPair{}, err
	}
	keyPair.PrivateKey = string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(rsaKey),
	}))

	err = p.addSSHPublicKey(ctx, keyPair.PublicKey)
	if err != nil {
		return KeyPair{}, err
	}

	return keyPair, nil
}

// ImportKeyPair parses the given OpenSSH public key material and registers
// it to the account under the given name.
func (p *SlipStreamProvider) ImportKeyPair(ctx context.Context, name, material string) (KeyPair, error) {
	keyPair, err := keyPairFromPublicKey(material, name)
	if err != nil {
		return KeyPair{}, err
	}

	err = p.addSSHPublicKey(ctx, keyPair.PublicKey)
	if err != nil {
		return KeyPair{}, err
	}

	return keyPair, nil
}

// ImportKeyPairFromFile reads OpenSSH public key material from a file and
// registers it like ImportKeyPair.
func (p *SlipStreamProvider) ImportKeyPairFromFile(ctx context.Context, name, path string) (KeyPair, error) {
	material, err := os.ReadFile(path)
	if err != nil {
		return KeyPair{}, err
	}

	return p.ImportKeyPair(ctx, name, string(material))
}

// DeleteKeyPair removes the key pair with the exact name of keyPair from the
// account. Deleting a name that isn't registered fails with
// ErrKeyPairNotFound before any upstream update is attempted.
func (p *SlipStreamProvider) DeleteKeyPair(ctx context.Context, keyPair KeyPair) error {
	keyPairs, err := p.ListKeyPairs(ctx)
	if err != nil {
		return err
	}

	var remaining []string
	found := false
	for _, existing := range keyPairs {
		if existing.Name == keyPair.Name {
			found = true
			continue
		}
		remaining = append(remaining, existing.PublicKey)
	}

	if !found {
		return ErrKeyPairNotFound
	}

	return p.api.UpdateUserSSHKeys(ctx, strings.Join(remaining, "\n"))
}

func (p *SlipStreamProvider) addSSHPublicKey(ctx context.Context, publicKey string) error {
	user, err := p.api.GetUser(ctx)
	if err != nil {
		return err
	}

	entries := splitKeyBlob(user.SSHPublicKeys)
	entries = append(entries, publicKey)

	return p.api.UpdateUserSSHKeys(ctx, strings.Join(entries, "\n"))
}

func splitKeyBlob(blob string) []string {
	var entries []string
	for _, line := range strings.Split(blob, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entries = append(entries, line)
	}
	return entries
}

// keyPairFromPublicKey builds a KeyPair from a single-line OpenSSH public
// key ("<type> <base64-content> [<comment>]"). A non-empty name overrides
// the comment as the key pair's name.
func keyPairFromPublicKey(material, name string) (KeyPair, error) {
	keyType, content, comment, err := parseSSHPublicKey(material)
	if err != nil {
		return KeyPair{}, err
	}

	if name == "" {
		name = comment
	}

	publicKey := keyType + " " + content
	if name != "" {
		publicKey += " " + name
	}

	return KeyPair{
		Name:      name,
		PublicKey: publicKey,
		Type:      keyType,
		Content:   content,
	}, nil
}

// parseSSHPublicKey splits an OpenSSH public key line into its type, content
// and comment fields. The comment is optional and may contain spaces.
func parseSSHPublicKey(material string) (string, string, string, error) {
	trimmed := strings.Trim(material, " \t\r\n")
	fields := strings.SplitN(trimmed, " ", 3)
	if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
		return "", "", "", &KeyFormatError{Entry: material}
	}

	comment := ""
	if len(fields) == 3 {
		comment = strings.TrimSpace(fields[2])
	}

	return fields[0], fields[1], comment, nil
}
