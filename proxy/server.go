package proxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gorilla/websocket"
)

// hop headers the gateway must not hand to the upstream
var strippedHeaders = []string{"Authorization", "Upgrade", "Connection", "Sec-Websocket-Key", "Sec-Websocket-Version", "Sec-Websocket-Extensions"}

func NewReverseServer(u *url.URL) http.Handler {
	urlForHttp := *u
	proxy := httputil.NewSingleHostReverseProxy(&urlForHttp)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		r.Host = urlForHttp.Host
		r.Header.Del("Authorization")
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warnf("proxy %s to %s: %v", r.URL.Path, urlForHttp.Host, err)
		w.WriteHeader(http.StatusBadGateway)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") != "websocket" {
			proxy.ServeHTTP(w, r)
			return
		}

		// switch to websocket
		urlForWs := *r.URL
		switch u.Scheme {
		case "https":
			urlForWs.Scheme = "wss"
		default:
			urlForWs.Scheme = "ws"
		}
		urlForWs.Host = u.Host
		urlForWs.Path = singleJoiningSlash(u.Path, r.URL.Path)

		header := http.Header{}
		for k, v := range r.Header {
			header[k] = v
		}
		for _, h := range strippedHeaders {
			header.Del(h)
		}

		proxyConn, resp, err := websocket.DefaultDialer.Dial(urlForWs.String(), header)
		if err != nil {
			if resp != nil {
				err = fmt.Errorf("dial proxy websocket: %w (status %d)", err, resp.StatusCode)
			} else {
				err = fmt.Errorf("dial proxy websocket: %w", err)
			}
			log.Error(err)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer func() {
			if err := proxyConn.Close(); err != nil {
				log.Debugf("close proxyConn: %v", err)
			}
		}()

		upgrader := websocket.Upgrader{}
		clientConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Errorf("upgrade websocket: %v", err)
			return
		}
		defer func() {
			if err := clientConn.Close(); err != nil {
				log.Debugf("close clientConn: %v", err)
			}
		}()

		done := make(chan struct{}, 2)
		go forwardMessages(done, proxyConn, clientConn)
		go forwardMessages(done, clientConn, proxyConn)
		<-done
	})
}

// forwardMessages copies frames until either side fails.
func forwardMessages(done chan<- struct{}, src *websocket.Conn, dst *websocket.Conn) {
	defer func() { done <- struct{}{} }()
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			log.Debugf("read message from %s: %v", src.RemoteAddr(), err)
			return
		}

		if err := dst.WriteMessage(messageType, message); err != nil {
			log.Debugf("write message to %s: %v", dst.RemoteAddr(), err)
			return
		}
	}
}

func singleJoiningSlash(a, b string) string {
	switch {
	case a == "" || a == "/":
		return b
	case a[len(a)-1] == '/' && len(b) > 0 && b[0] == '/':
		return a + b[1:]
	case a[len(a)-1] != '/' && (len(b) == 0 || b[0] != '/'):
		return a + "/" + b
	}
	return a + b
}
