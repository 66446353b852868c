package cmcd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromQueryStringPackedShape(t *testing.T) {
	got := FromQueryString("cmcd=br=3200,bl=12500,ot=v")
	assert.Equal(t, map[string]string{
		"cmcd.br": "3200",
		"cmcd.bl": "12500",
		"cmcd.ot": "v",
	}, got)
}

func TestFromQueryStringPackedShapeUppercase(t *testing.T) {
	got := FromQueryString("CMCD=bl=17900,br=5300")
	assert.Equal(t, map[string]string{
		"cmcd.bl": "17900",
		"cmcd.br": "5300",
	}, got)
}

func TestFromQueryStringPrefixedShape(t *testing.T) {
	got := FromQueryString("cmcd.br=3200&cmcd.ot=v")
	assert.Equal(t, map[string]string{
		"cmcd.br": "3200",
		"cmcd.ot": "v",
	}, got)
}

func TestFromQueryStringMixedShapesMerge(t *testing.T) {
	got := FromQueryString("cmcd=br=3200,ot=v&cmcd.sid=abc")
	assert.Equal(t, map[string]string{
		"cmcd.br":  "3200",
		"cmcd.ot":  "v",
		"cmcd.sid": "abc",
	}, got)
}

func TestFromQueryStringQuotedValues(t *testing.T) {
	got := FromQueryString(`cmcd=sid=%22abc%22,cid=%22movie-1%22`)
	assert.Equal(t, "abc", got["cmcd.sid"])
	assert.Equal(t, "movie-1", got["cmcd.cid"])
}

func TestFromQueryStringIgnoresOtherParams(t *testing.T) {
	got := FromQueryString("token=xyz&session=1")
	assert.Empty(t, got)
}

func TestFromQueryStringEmptyAndWhitespace(t *testing.T) {
	assert.Empty(t, FromQueryString(""))
	assert.Empty(t, FromQueryString("   "))
}

func TestFromQueryStringSkipsPairsWithoutEquals(t *testing.T) {
	got := FromQueryString("cmcd=su,br=3200")
	// "su" is a valueless boolean key in CMCD; the packed parser only
	// keeps key=value pairs, matching the original behavior.
	require.Equal(t, map[string]string{"cmcd.br": "3200"}, got)
}

func TestFromPath(t *testing.T) {
	got := FromPath("/vod/segment.m4s?cmcd=ot=v,br=3200")
	assert.Equal(t, map[string]string{
		"cmcd.ot": "v",
		"cmcd.br": "3200",
	}, got)

	assert.Empty(t, FromPath("/vod/segment.m4s"))
	assert.Empty(t, FromPath(""))
}
