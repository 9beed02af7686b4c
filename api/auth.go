package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/filecoin-project/go-jsonrpc/auth"
	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/trace"

	"github.com/genetrust/genetrust-gateway/types"
)

var log = logging.Logger("api")

// TokenVerifier resolves a bearer token into the permissions it grants.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) ([]auth.Permission, error)
}

// AuthHandler grants permissions per request. Without a static token or a verifier every caller
// gets all permissions; otherwise only loopback callers may omit the token.
type AuthHandler struct {
	Token    string
	Verifier TokenVerifier
	Next     http.Handler
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "AuthHandler.ServeHTTP",
		func(so *trace.StartOptions) { so.Sampler = trace.AlwaysSample() })
	defer span.End()

	ip := clientIP(r)
	ctx = types.CtxWithIP(ctx, ip)
	span.AddAttributes(trace.StringAttribute("X-Real-IP", ip), trace.StringAttribute("preHost", r.Host))

	token := r.Header.Get("Authorization")
	if token == "" {
		token = r.FormValue("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	switch {
	case h.Token == "" && h.Verifier == nil:
		ctx = auth.WithPerm(ctx, AllPermissions)
	case token == "":
		if !isLoopback(r.RemoteAddr) {
			message := "empty token"
			span.SetStatus(trace.Status{Code: trace.StatusCodeUnauthenticated, Message: message})
			log.Warnw("reject request", "remote", r.RemoteAddr, "reason", message)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		ctx = auth.WithPerm(ctx, AllPermissions)
	default:
		if !strings.HasPrefix(token, "Bearer ") {
			log.Warn("missing Bearer prefix in auth header")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		perms, err := h.verify(ctx, strings.TrimPrefix(token, "Bearer "))
		if err != nil {
			span.SetStatus(trace.Status{Code: trace.StatusCodeUnauthenticated, Message: err.Error()})
			log.Warnw("reject request", "remote", r.RemoteAddr, "reason", err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		ctx = auth.WithPerm(ctx, perms)
	}

	h.Next.ServeHTTP(w, r.WithContext(ctx))
}

func (h *AuthHandler) verify(ctx context.Context, token string) ([]auth.Permission, error) {
	if h.Token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(h.Token)) == 1 {
		return AllPermissions, nil
	}
	if h.Verifier != nil {
		return h.Verifier.Verify(ctx, token)
	}
	return nil, errors.New("token mismatch")
}

func clientIP(r *http.Request) string {
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
