// internal/page/registry_test.go
package page

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopFactory(ctx Context) Page { return nil }

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry()

	err := r.Register(Definition{
		Descriptor: Descriptor{Namespace: "stats", PageID: "overview", SupportsPush: true},
		New:        nopFactory,
	})
	require.NoError(t, err)

	def, err := r.Resolve("stats", "overview")
	require.NoError(t, err)
	assert.Equal(t, "stats", def.Namespace)
	assert.Equal(t, "overview", def.PageID)
	assert.True(t, def.SupportsPush)
}

func TestRegisterDuplicateKeepsFirst(t *testing.T) {
	r := NewRegistry()

	first := Definition{
		Descriptor: Descriptor{Namespace: "stats", PageID: "overview", SupportsPush: true},
		New:        nopFactory,
	}
	require.NoError(t, r.Register(first))

	second := Definition{
		Descriptor: Descriptor{Namespace: "stats", PageID: "overview"},
		New:        nopFactory,
	}
	err := r.Register(second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicatePage))

	def, err := r.Resolve("stats", "overview")
	require.NoError(t, err)
	assert.True(t, def.SupportsPush, "first registration must stay intact")
}

func TestRegisterInvalidDescriptor(t *testing.T) {
	r := NewRegistry()

	cases := []Definition{
		{Descriptor: Descriptor{Namespace: "", PageID: "overview"}, New: nopFactory},
		{Descriptor: Descriptor{Namespace: "stats", PageID: ""}, New: nopFactory},
		{Descriptor: Descriptor{Namespace: "stats", PageID: "overview"}, New: nil},
	}
	for _, def := range cases {
		err := r.Register(def)
		assert.True(t, errors.Is(err, ErrInvalidDescriptor), "expected invalid descriptor, got %v", err)
	}
}

func TestResolveUnknown(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{
		Descriptor: Descriptor{Namespace: "stats", PageID: "overview"},
		New:        nopFactory,
	}))

	_, err := r.Resolve("stats", "missing")
	assert.True(t, errors.Is(err, ErrUnknownPage))

	_, err = r.Resolve("other", "overview")
	assert.True(t, errors.Is(err, ErrUnknownPage))
}

func TestUnregisterNamespace(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{
		Descriptor: Descriptor{Namespace: "stats", PageID: "overview"},
		New:        nopFactory,
	}))
	require.NoError(t, r.Register(Definition{
		Descriptor: Descriptor{Namespace: "shop", PageID: "catalog"},
		New:        nopFactory,
	}))

	r.UnregisterNamespace("stats")

	_, err := r.Resolve("stats", "overview")
	assert.True(t, errors.Is(err, ErrUnknownPage))

	_, err = r.Resolve("shop", "catalog")
	assert.NoError(t, err, "other namespaces must be unaffected")
}

func TestParseRequestKind(t *testing.T) {
	for name, want := range map[string]RequestKind{
		"INIT": RequestInit,
		"AJAX": RequestAjax,
		"PUSH": RequestPush,
	} {
		got, ok := ParseRequestKind(name)
		require.True(t, ok)
		assert.Equal(t, want, got)
		assert.Equal(t, name, got.String())
	}

	_, ok := ParseRequestKind("WEBHOOK")
	assert.False(t, ok)
}
