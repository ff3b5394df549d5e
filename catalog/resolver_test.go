package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	entries []Entry
	err     error
	calls   int
}

func (f *fakeSource) ListAll(context.Context) ([]Entry, error) {
	f.calls++
	return f.entries, f.err
}

func TestResolver_LookupOrder(t *testing.T) {
	r := NewStaticResolver(DefaultEntries)

	key, err := r.Resolve(" segob ")
	require.NoError(t, err)
	assert.Equal(t, "ENTE_1_2", key)

	key, err = r.Resolve("SECRETARIA DE FINANZAS")
	require.NoError(t, err)
	assert.Equal(t, "ENTE_1_4", key)

	key, err = r.Resolve("ente_1_8")
	require.NoError(t, err)
	assert.Equal(t, "ENTE_1_8", key)

	_, err = r.Resolve("Hoja1")
	assert.True(t, errors.Is(err, ErrEntityNotFound))

	_, err = r.Resolve("   ")
	assert.True(t, errors.Is(err, ErrEntityNotFound))
}

func TestResolver_ShortCodeWinsOverName(t *testing.T) {
	r := NewStaticResolver([]Entry{
		{Ordinal: "1", Key: "K1", Name: "IEE", ShortCode: "X"},
		{Ordinal: "2", Key: "K2", Name: "Instituto Estatal Electoral", ShortCode: "IEE"},
	})

	key, err := r.Resolve("iee")
	require.NoError(t, err)
	assert.Equal(t, "K2", key)
}

func TestResolver_RefreshRebuildsAndFlushesMemo(t *testing.T) {
	src := &fakeSource{entries: []Entry{{Ordinal: "1", Key: "ENTE_A", ShortCode: "AAA", Name: "Alfa"}}}
	r := NewResolver(src, 0)

	_, err := r.Resolve("AAA")
	require.ErrorIs(t, err, ErrEntityNotFound, "nothing is indexed before Refresh")

	require.NoError(t, r.Refresh(context.Background()))
	key, err := r.Resolve("aaa")
	require.NoError(t, err)
	assert.Equal(t, "ENTE_A", key)

	src.entries = []Entry{{Ordinal: "1", Key: "ENTE_B", ShortCode: "AAA", Name: "Beta"}}
	key, err = r.Resolve("AAA")
	require.NoError(t, err)
	assert.Equal(t, "ENTE_A", key, "snapshot is kept until the next Refresh")

	require.NoError(t, r.Refresh(context.Background()))
	key, err = r.Resolve("AAA")
	require.NoError(t, err)
	assert.Equal(t, "ENTE_B", key)
	assert.Equal(t, 2, src.calls)
}

func TestResolver_RefreshError(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	r := NewResolver(src, 0)

	err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog: refresh")
}

func TestResolver_DisplayHelpers(t *testing.T) {
	r := NewStaticResolver([]Entry{
		{Ordinal: "1", Key: "ENTE_1", Name: "Uno", ShortCode: "U"},
		{Ordinal: "2", Key: "ENTE_2", Name: "Dos"},
	})

	assert.Equal(t, "U", r.Display("ENTE_1"))
	assert.Equal(t, "Dos", r.Display("ENTE_2"))
	assert.Equal(t, "ENTE_9", r.Display("ENTE_9"))
	assert.Equal(t, "ENTE_2", r.ShortCode("ENTE_2"))
	assert.Equal(t, "ENTE_1", r.Normalize("u"))
	assert.Equal(t, "nowhere", r.Normalize("nowhere"))
	assert.Len(t, r.Entries(), 2)
}
