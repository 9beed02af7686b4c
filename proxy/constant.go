package proxy

import "fmt"

// Upstream names a service the gateway can forward to.
type Upstream string

const (
	UpstreamUnknown   Upstream = ""
	UpstreamStacksAPI Upstream = "STACKS_NODE"
)

var (
	// NodePrefixes are the stacks node api roots forwarded to UpstreamStacksAPI.
	NodePrefixes = []string{"/v2/", "/extended/"}

	ErrorNoReverseProxyRegistered = fmt.Errorf("no reverse proxy registered")
)
