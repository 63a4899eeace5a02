package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"conduit/internal/mcpclient"
	"conduit/internal/mcpclient/clienttest"
	"conduit/internal/mcperr"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stdioDescriptor() mcpclient.TransportDescriptor {
	return mcpclient.TransportDescriptor{Type: mcpclient.TransportStdio, Command: "echo"}
}

// factoryFor returns a ClientFactory handing out the given fakes by server
// identifier.
func factoryFor(fakes map[string]*clienttest.FakeClient) ClientFactory {
	return func(server string, descriptor mcpclient.TransportDescriptor) (mcpclient.MCPClient, error) {
		if err := descriptor.Validate(); err != nil {
			return nil, err
		}
		return fakes[server], nil
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "filesystem", false},
		{"with dash and underscore", "my-server_2", false},
		{"empty", "", true},
		{"contains separator", "bad.name", true},
		{"only separator", ".", true},
		{"leading whitespace", " server", true},
		{"trailing whitespace", "server ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.id)
			if tt.wantErr {
				var validationErr *mcperr.ValidationError
				require.Error(t, err)
				assert.ErrorAs(t, err, &validationErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConnectRejectsSeparatorInIdentifier(t *testing.T) {
	created := false
	r := New(WithClientFactory(func(server string, d mcpclient.TransportDescriptor) (mcpclient.MCPClient, error) {
		created = true
		return &clienttest.FakeClient{}, nil
	}))

	err := r.Connect(context.Background(), "bad.name", stdioDescriptor())

	var validationErr *mcperr.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.False(t, created, "no handle may be created for an invalid identifier")
	assert.False(t, r.IsConnected("bad.name"))
}

func TestConnectCachesCapabilities(t *testing.T) {
	fake := &clienttest.FakeClient{
		ListToolsFunc: func(ctx context.Context) ([]mcp.Tool, error) {
			return []mcp.Tool{clienttest.Tool("search", "find things", nil)}, nil
		},
		ListResourcesFunc: func(ctx context.Context) ([]mcp.Resource, error) {
			return []mcp.Resource{{URI: "file:///data", Name: "data"}}, nil
		},
		ListPromptsFunc: func(ctx context.Context) ([]mcp.Prompt, error) {
			return []mcp.Prompt{{Name: "summarize"}}, nil
		},
	}
	r := New(WithClientFactory(factoryFor(map[string]*clienttest.FakeClient{"alpha": fake})))

	require.NoError(t, r.Connect(context.Background(), "alpha", stdioDescriptor()))

	assert.True(t, r.IsConnected("alpha"))

	snap, ok := r.Get("alpha")
	require.True(t, ok)
	require.Len(t, snap.Tools, 1)
	assert.Equal(t, "search", snap.Tools[0].Name)
	require.Len(t, snap.Resources, 1)
	require.Len(t, snap.Prompts, 1)
	assert.False(t, snap.ConnectedAt.IsZero())
}

// A server that supports tools but not resources or prompts still connects;
// the missing capabilities come back as empty lists, never as a failure.
func TestConnectPartialCapabilitySupport(t *testing.T) {
	fake := &clienttest.FakeClient{
		ListToolsFunc: func(ctx context.Context) ([]mcp.Tool, error) {
			return []mcp.Tool{clienttest.Tool("search", "", nil)}, nil
		},
		ListResourcesFunc: func(ctx context.Context) ([]mcp.Resource, error) {
			return nil, errors.New("method not supported")
		},
		ListPromptsFunc: func(ctx context.Context) ([]mcp.Prompt, error) {
			return nil, errors.New("method not supported")
		},
	}
	r := New(WithClientFactory(factoryFor(map[string]*clienttest.FakeClient{"alpha": fake})))

	require.NoError(t, r.Connect(context.Background(), "alpha", stdioDescriptor()))

	snap, ok := r.Get("alpha")
	require.True(t, ok)
	assert.NotEmpty(t, snap.Tools)
	assert.Empty(t, snap.Resources)
	assert.Empty(t, snap.Prompts)
}

func TestConnectInitializeFailure(t *testing.T) {
	fake := &clienttest.FakeClient{
		InitializeFunc: func(ctx context.Context) error {
			return &mcperr.ConnectionError{Server: "alpha", Err: errors.New("spawn failed")}
		},
	}
	r := New(WithClientFactory(factoryFor(map[string]*clienttest.FakeClient{"alpha": fake})))

	err := r.Connect(context.Background(), "alpha", stdioDescriptor())

	var connErr *mcperr.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.False(t, r.IsConnected("alpha"))
}

func TestConnectReplacesExistingHandle(t *testing.T) {
	first := &clienttest.FakeClient{}
	second := &clienttest.FakeClient{
		ListToolsFunc: func(ctx context.Context) ([]mcp.Tool, error) {
			return []mcp.Tool{clienttest.Tool("fresh", "", nil)}, nil
		},
	}

	clients := []*clienttest.FakeClient{first, second}
	i := 0
	r := New(WithClientFactory(func(server string, d mcpclient.TransportDescriptor) (mcpclient.MCPClient, error) {
		c := clients[i]
		i++
		return c, nil
	}))

	ctx := context.Background()
	require.NoError(t, r.Connect(ctx, "alpha", stdioDescriptor()))
	require.NoError(t, r.Connect(ctx, "alpha", stdioDescriptor()))

	assert.Equal(t, 1, first.Closed, "old handle must be closed on replace")

	snap, ok := r.Get("alpha")
	require.True(t, ok)
	require.Len(t, snap.Tools, 1)
	assert.Equal(t, "fresh", snap.Tools[0].Name)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	fake := &clienttest.FakeClient{}
	r := New(WithClientFactory(factoryFor(map[string]*clienttest.FakeClient{"alpha": fake})))

	require.NoError(t, r.Connect(context.Background(), "alpha", stdioDescriptor()))
	require.NoError(t, r.Disconnect("alpha"))
	assert.Equal(t, 1, fake.Closed)
	assert.False(t, r.IsConnected("alpha"))

	// Second disconnect is a no-op, not an error.
	require.NoError(t, r.Disconnect("alpha"))
	assert.Equal(t, 1, fake.Closed)

	// Unknown identifier is also a no-op.
	require.NoError(t, r.Disconnect("never-existed"))
}

func TestDisconnectAllReverseOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex
	mkFake := func(name string) *clienttest.FakeClient {
		return &clienttest.FakeClient{
			CloseFunc: func() error {
				mu.Lock()
				defer mu.Unlock()
				order = append(order, name)
				return nil
			},
		}
	}
	fakes := map[string]*clienttest.FakeClient{
		"a": mkFake("a"), "b": mkFake("b"), "c": mkFake("c"),
	}
	r := New(WithClientFactory(factoryFor(fakes)))

	ctx := context.Background()
	require.NoError(t, r.Connect(ctx, "a", stdioDescriptor()))
	require.NoError(t, r.Connect(ctx, "b", stdioDescriptor()))
	require.NoError(t, r.Connect(ctx, "c", stdioDescriptor()))

	r.DisconnectAll()

	assert.Equal(t, []string{"c", "b", "a"}, order)
	assert.Empty(t, r.ListIDs())
}

func TestGetAllAndListIDs(t *testing.T) {
	fakes := map[string]*clienttest.FakeClient{
		"beta":  {},
		"alpha": {},
	}
	r := New(WithClientFactory(factoryFor(fakes)))

	ctx := context.Background()
	require.NoError(t, r.Connect(ctx, "beta", stdioDescriptor()))
	require.NoError(t, r.Connect(ctx, "alpha", stdioDescriptor()))

	all := r.GetAll()
	assert.Len(t, all, 2)
	assert.Contains(t, all, "alpha")
	assert.Contains(t, all, "beta")

	assert.Equal(t, []string{"alpha", "beta"}, r.ListIDs())
}

func TestClientUnknownIdentifier(t *testing.T) {
	r := New()

	_, err := r.Client("ghost")

	var notConnected *mcperr.NotConnectedError
	require.ErrorAs(t, err, &notConnected)
	assert.Equal(t, "ghost", notConnected.Server)
}

// Snapshots returned by Get are copies; mutating them must not affect the
// registry's cache.
func TestSnapshotIsolation(t *testing.T) {
	fake := &clienttest.FakeClient{
		ListToolsFunc: func(ctx context.Context) ([]mcp.Tool, error) {
			return []mcp.Tool{clienttest.Tool("search", "", nil)}, nil
		},
	}
	r := New(WithClientFactory(factoryFor(map[string]*clienttest.FakeClient{"alpha": fake})))
	require.NoError(t, r.Connect(context.Background(), "alpha", stdioDescriptor()))

	snap, _ := r.Get("alpha")
	snap.Tools[0].Name = "mutated"

	fresh, _ := r.Get("alpha")
	assert.Equal(t, "search", fresh.Tools[0].Name)
}

func TestConcurrentConnectsDistinctIDs(t *testing.T) {
	fakes := map[string]*clienttest.FakeClient{}
	names := []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7"}
	for _, n := range names {
		fakes[n] = &clienttest.FakeClient{}
	}
	r := New(WithClientFactory(factoryFor(fakes)))

	var wg sync.WaitGroup
	for _, n := range names {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, r.Connect(context.Background(), id, stdioDescriptor()))
		}(n)
	}
	wg.Wait()

	assert.Len(t, r.ListIDs(), len(names))
}
