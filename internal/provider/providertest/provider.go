// Package providertest provides a testify mock of provider.MetadataProvider.
package providertest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Taichi-iskw/yt-library/internal/provider"
)

// Provider is a mock implementation of provider.MetadataProvider for testing
type Provider struct {
	mock.Mock
}

var _ provider.MetadataProvider = (*Provider)(nil)

func (m *Provider) FetchChannel(ctx context.Context, id string) (*provider.ChannelPayload, error) {
	args := m.Called(ctx, id)
	payload, _ := args.Get(0).(*provider.ChannelPayload)
	return payload, args.Error(1)
}

func (m *Provider) FetchVideo(ctx context.Context, id string) (*provider.VideoPayload, error) {
	args := m.Called(ctx, id)
	payload, _ := args.Get(0).(*provider.VideoPayload)
	return payload, args.Error(1)
}

func (m *Provider) FetchPlaylist(ctx context.Context, id string) (*provider.PlaylistPayload, error) {
	args := m.Called(ctx, id)
	payload, _ := args.Get(0).(*provider.PlaylistPayload)
	return payload, args.Error(1)
}

func (m *Provider) FetchTranscript(ctx context.Context, id string) (*provider.TranscriptPayload, error) {
	args := m.Called(ctx, id)
	payload, _ := args.Get(0).(*provider.TranscriptPayload)
	return payload, args.Error(1)
}

func (m *Provider) DownloadVideo(ctx context.Context, id, destDir string) (string, error) {
	args := m.Called(ctx, id, destDir)
	return args.String(0), args.Error(1)
}

// WaitForCancel is a Run hook that blocks until the call's context is done
func WaitForCancel(args mock.Arguments) {
	<-args.Get(0).(context.Context).Done()
}
