package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/multiformats/go-multiaddr"
	maNet "github.com/multiformats/go-multiaddr/net"
)

var log = logging.Logger("proxy")

type IProxy interface {
	RegisterReverseHandler(upstream Upstream, server http.Handler)
	RegisterReverseByAddr(upstream Upstream, address string) error
	ProxyMiddleware(next http.Handler) http.Handler
}

// Proxy forwards requests under known path prefixes to an upstream, e.g. the stacks node
// api for wallet apps that only reach the gateway.
type Proxy struct {
	lk      sync.RWMutex
	handler map[Upstream]http.Handler
	routes  map[string]Upstream
}

var _ IProxy = (*Proxy)(nil)

func NewProxy() *Proxy {
	p := &Proxy{
		handler: make(map[Upstream]http.Handler),
		routes:  make(map[string]Upstream),
	}
	for _, prefix := range NodePrefixes {
		p.routes[prefix] = UpstreamStacksAPI
	}
	return p
}

func (p *Proxy) ProxyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstream := p.route(r.URL.Path)
		if upstream == UpstreamUnknown {
			next.ServeHTTP(w, r)
			return
		}

		ser, err := p.getReverseHandler(upstream)
		if err != nil {
			log.Errorf("get reverse handler fail: %s", err)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		ser.ServeHTTP(w, r)
	})
}

// route picks the upstream of the longest matching prefix.
func (p *Proxy) route(path string) Upstream {
	p.lk.RLock()
	defer p.lk.RUnlock()
	best, upstream := "", UpstreamUnknown
	for prefix, u := range p.routes {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(best) {
			best, upstream = prefix, u
		}
	}
	return upstream
}

func (p *Proxy) getReverseHandler(upstream Upstream) (http.Handler, error) {
	p.lk.RLock()
	defer p.lk.RUnlock()
	server, ok := p.handler[upstream]
	if !ok {
		return nil, fmt.Errorf("upstream(%s) : %w", upstream, ErrorNoReverseProxyRegistered)
	}
	return server, nil
}

func (p *Proxy) RegisterReverseHandler(upstream Upstream, server http.Handler) {
	p.lk.Lock()
	defer p.lk.Unlock()
	if server == nil {
		delete(p.handler, upstream)
		log.Info("unregister reverse proxy for ", upstream)
		return
	}
	log.Infof("register reverse proxy for %s", upstream)
	p.handler[upstream] = server
}

func (p *Proxy) RegisterReverseByAddr(upstream Upstream, address string) error {
	// unregister handler if address is empty
	if address == "" {
		p.RegisterReverseHandler(upstream, nil)
		return nil
	}
	u, err := parseAddr(address)
	if err != nil {
		return err
	}

	log.Infof("register reverse proxy for %s: %s", upstream, u.String())
	p.RegisterReverseHandler(upstream, NewReverseServer(u))
	return nil
}

// parseAddr parse a multiaddr or normal url string into url.Url
func parseAddr(address string) (*url.URL, error) {
	ma, err := multiaddr.NewMultiaddr(address)
	if err == nil {
		_, addr, err := maNet.DialArgs(ma)
		if err != nil {
			return nil, fmt.Errorf("parser libp2p url fail %w", err)
		}

		hasTLS := false
		for _, code := range []int{multiaddr.P_WSS, multiaddr.P_HTTPS} {
			_, err = ma.ValueForProtocol(code)
			if err == nil {
				hasTLS = true
			} else if err != multiaddr.ErrProtocolNotFound {
				return nil, err
			}
		}

		if hasTLS {
			address = "https://" + addr
		} else {
			address = "http://" + addr
		}
	}

	u, err := url.Parse(address)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream address %q", address)
	}
	return u, nil
}
