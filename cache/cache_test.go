package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/weft/cache"
	"github.com/loomhq/weft/frontend"
	"github.com/loomhq/weft/internal/numbersdata"
	"github.com/loomhq/weft/query"
)

const cachedQuery = `{ Number(max: 5) { value @output } }`

func TestCompileCachesByQueryText(t *testing.T) {
	c, err := cache.New(numbersdata.MustSchema(), cache.Config{})
	require.NoError(t, err)
	defer c.Close()

	first, err := c.Compile(cachedQuery)
	require.NoError(t, err)
	c.Wait()

	second, err := c.Compile(cachedQuery)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestCompileMatchesUncached(t *testing.T) {
	sch := numbersdata.MustSchema()
	c, err := cache.New(sch, cache.Config{})
	require.NoError(t, err)
	defer c.Close()

	cached, err := c.Compile(cachedQuery)
	require.NoError(t, err)

	parsed, err := query.Parse(cachedQuery)
	require.NoError(t, err)
	direct, err := frontend.Compile(sch, parsed)
	require.NoError(t, err)

	assert.Equal(t, direct.Outputs, cached.Outputs)
	assert.Equal(t, direct.IR.RootName, cached.IR.RootName)
}

func TestCompileErrorsAreNotCached(t *testing.T) {
	c, err := cache.New(numbersdata.MustSchema(), cache.Config{})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Compile(`{ Number(max: 5) { wingspan @output } }`)
	require.Error(t, err)
	c.Wait()

	_, err = c.Compile(`{ Number(max: 5) { wingspan @output } }`)
	require.Error(t, err)
}
