package utils

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/filecoin-project/go-jsonrpc/auth"
	jwt3 "github.com/gbrlsnchs/jwt/v3"
)

const (
	TokenFile  = "token"
	SecretFile = "secret"
)

// permission ladder, a token holding one level also holds every level below it
var permLevels = []auth.Permission{"read", "write", "sign", "admin"}

type JWTPayload struct {
	Name string
	Perm string
}

// LocalJwtClient signs and verifies gateway tokens with a secret kept in the repo, so tokens
// stay valid across restarts.
type LocalJwtClient struct {
	repo   string
	Seckey []byte
	Token  []byte
}

func NewLocalJwtClient(repo string) (*LocalJwtClient, error) {
	seckey, err := loadOrCreateSecret(filepath.Join(repo, SecretFile))
	if err != nil {
		return nil, err
	}

	l := &LocalJwtClient{repo: repo, Seckey: seckey}
	if l.Token, err = l.NewToken("GateWayLocalToken", "admin"); err != nil {
		return nil, err
	}
	return l, nil
}

func loadOrCreateSecret(path string) ([]byte, error) {
	seckey, err := os.ReadFile(path)
	if err == nil && len(seckey) == 32 {
		return seckey, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if seckey, err = io.ReadAll(io.LimitReader(rand.Reader, 32)); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, seckey, 0600); err != nil {
		return nil, fmt.Errorf("write secret: %w", err)
	}
	return seckey, nil
}

// NewToken signs a token for name granting perm and every lower permission.
func (l *LocalJwtClient) NewToken(name string, perm auth.Permission) ([]byte, error) {
	if expandPerm(perm) == nil {
		return nil, fmt.Errorf("unknown permission %q", perm)
	}
	return jwt3.Sign(JWTPayload{Name: name, Perm: string(perm)}, jwt3.NewHS256(l.Seckey))
}

func (l *LocalJwtClient) Verify(ctx context.Context, token string) ([]auth.Permission, error) {
	var payload JWTPayload
	if _, err := jwt3.Verify([]byte(token), jwt3.NewHS256(l.Seckey), &payload); err != nil {
		return nil, fmt.Errorf("JWT Verification failed: %v", err)
	}
	perms := expandPerm(auth.Permission(payload.Perm))
	if perms == nil {
		return nil, fmt.Errorf("token %s carries unknown permission %q", payload.Name, payload.Perm)
	}
	return perms, nil
}

func (l *LocalJwtClient) SaveToken() error {
	return os.WriteFile(filepath.Join(l.repo, TokenFile), l.Token, 0600)
}

func expandPerm(perm auth.Permission) []auth.Permission {
	for i, p := range permLevels {
		if p == perm {
			perms := make([]auth.Permission, i+1)
			copy(perms, permLevels[:i+1])
			return perms
		}
	}
	return nil
}
