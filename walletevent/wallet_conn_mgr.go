package walletevent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/genetrust/genetrust-gateway/types"
)

type walletChannelInfo struct {
	*types.ChannelInfo
	provider types.ProviderID
	name     string
}

func newWalletChannelInfo(channelInfo *types.ChannelInfo, policy *WalletRegisterPolicy) *walletChannelInfo {
	return &walletChannelInfo{ChannelInfo: channelInfo, provider: policy.Provider, name: policy.Name}
}

type providerConns struct {
	connections map[uuid.UUID]*walletChannelInfo
}

type walletConnMgr struct {
	infoLk    sync.Mutex
	providers map[types.ProviderID]*providerConns
}

func newWalletConnMgr() *walletConnMgr {
	return &walletConnMgr{
		infoLk:    sync.Mutex{},
		providers: make(map[types.ProviderID]*providerConns),
	}
}

func (w *walletConnMgr) addNewConn(channel *walletChannelInfo) {
	w.infoLk.Lock()
	defer w.infoLk.Unlock()

	conns, ok := w.providers[channel.provider]
	if !ok {
		conns = &providerConns{connections: make(map[uuid.UUID]*walletChannelInfo)}
		w.providers[channel.provider] = conns
	}
	conns.connections[channel.ChannelId] = channel

	log.Infow("add wallet connection", "channel", channel.ChannelId.String(),
		"provider", channel.provider,
		"name", channel.name,
		"total", len(conns.connections),
	)
}

// removeConn reports whether the channel was the last one of its provider.
func (w *walletConnMgr) removeConn(channel *walletChannelInfo) bool {
	w.infoLk.Lock()
	defer w.infoLk.Unlock()

	last := false
	if conns, ok := w.providers[channel.provider]; ok {
		delete(conns.connections, channel.ChannelId)
		if len(conns.connections) == 0 {
			delete(w.providers, channel.provider)
			last = true
		}
	}

	log.Infof("wallet app %s(%s) remove connection %s", channel.name, channel.provider, channel.ChannelId)
	return last
}

func (w *walletConnMgr) getConn(channelID uuid.UUID) (*walletChannelInfo, error) {
	w.infoLk.Lock()
	defer w.infoLk.Unlock()

	for _, conns := range w.providers {
		if conn, ok := conns.connections[channelID]; ok {
			return conn, nil
		}
	}
	return nil, fmt.Errorf("no connect found for channelID %s", channelID)
}

// getChannels returns the provider's channels, oldest first. The oldest app gets each request
// first and the others are only tried when it fails.
func (w *walletConnMgr) getChannels(provider types.ProviderID) ([]*types.ChannelInfo, error) {
	w.infoLk.Lock()
	defer w.infoLk.Unlock()

	conns, ok := w.providers[provider]
	if !ok || len(conns.connections) == 0 {
		return nil, fmt.Errorf("%w for provider %s", types.ErrWalletAppUnavailable, provider)
	}
	channels := make([]*types.ChannelInfo, 0, len(conns.connections))
	for _, conn := range conns.connections {
		channels = append(channels, conn.ChannelInfo)
	}
	sort.Slice(channels, func(i, j int) bool {
		return channels[i].CreateTime.Before(channels[j].CreateTime)
	})
	return channels, nil
}

func (w *walletConnMgr) connCount(provider types.ProviderID) int {
	w.infoLk.Lock()
	defer w.infoLk.Unlock()

	if conns, ok := w.providers[provider]; ok {
		return len(conns.connections)
	}
	return 0
}

func (w *walletConnMgr) listWalletInfo() []*types.WalletAppDetail {
	w.infoLk.Lock()
	defer w.infoLk.Unlock()

	details := []*types.WalletAppDetail{}
	for provider, conns := range w.providers {
		for channelID, conn := range conns.connections {
			details = append(details, &types.WalletAppDetail{
				Provider:     provider,
				Name:         conn.name,
				ChannelID:    channelID.String(),
				IP:           conn.Ip,
				RequestCount: len(conn.OutBound),
				CreateTime:   conn.CreateTime,
			})
		}
	}
	sort.Slice(details, func(i, j int) bool {
		return details[i].CreateTime.Before(details[j].CreateTime)
	})
	return details
}
