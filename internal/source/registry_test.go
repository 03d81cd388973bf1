package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *Alice, *Xspsw, *Wfxs) {
	t.Helper()
	client := NewHTTPClient(5 * time.Second)
	alice := NewAlice(client)
	xspsw := NewXspsw(client)
	wfxs := NewWfxs(client)
	return NewRegistry(alice, xspsw, wfxs), alice, xspsw, wfxs
}

func TestRegistry_ResolvesByHost(t *testing.T) {
	reg, alice, xspsw, wfxs := newTestRegistry(t)

	assert.Same(t, Source(alice), reg.Resolve("https://www.alicesw.com/novel/42.html"))
	assert.Same(t, Source(xspsw), reg.Resolve("https://m.xspsw.com/xianshishuwu_7.html"))
	assert.Same(t, Source(wfxs), reg.Resolve("https://m.wfxs.tw/xiaoshuo/99/"))
}

func TestRegistry_UnknownHostFallsBackToFirstRegistered(t *testing.T) {
	reg, alice, _, _ := newTestRegistry(t)

	assert.Same(t, Source(alice), reg.Resolve("https://unknown.example.com/book/1.html"))
	assert.Same(t, Source(alice), reg.Resolve("not a url at all"))
}

// A later registration wins when two adapters claim the same host.
func TestRegistry_LaterRegistrationTakesPriority(t *testing.T) {
	client := NewHTTPClient(5 * time.Second)
	first := NewAlice(client)
	reg := NewRegistry(first)

	second := NewAlice(client)
	reg.Register(second)

	assert.Same(t, Source(second), reg.Resolve("https://www.alicesw.com/novel/1.html"))
}

func TestRegistry_SourcesSnapshot(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	sources := reg.Sources()
	require.Len(t, sources, 3)
	assert.Equal(t, "alice_sw", sources[0].Name())
	assert.Equal(t, "xspsw", sources[1].Name())
	assert.Equal(t, "wfxs", sources[2].Name())
}

func TestSupports_HostMatching(t *testing.T) {
	_, alice, xspsw, wfxs := newTestRegistry(t)

	assert.True(t, alice.Supports("www.alicesw.com"))
	assert.True(t, alice.Supports("alicesw.com"))
	assert.False(t, alice.Supports("evil-alicesw.com"))

	assert.True(t, xspsw.Supports("m.xspsw.com"))
	assert.False(t, xspsw.Supports("xspsw.com.evil.net"))

	assert.True(t, wfxs.Supports("m.wfxs.tw"))
	assert.False(t, wfxs.Supports("wfxs.tw.evil.net"))
}
