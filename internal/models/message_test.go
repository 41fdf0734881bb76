package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCitationListEmptyStoresNull(t *testing.T) {
	var empty CitationList
	v, err := empty.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = CitationList{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestCitationListRoundTrip(t *testing.T) {
	list := CitationList{{FileID: "file_abc", Filename: "handbook.pdf", Quote: "vacation policy"}}
	v, err := list.Value()
	require.NoError(t, err)
	raw, ok := v.([]byte)
	require.True(t, ok)

	var scanned CitationList
	require.NoError(t, scanned.Scan(raw))
	assert.Equal(t, list, scanned)
}

func TestCitationListScanNull(t *testing.T) {
	scanned := CitationList{{FileID: "stale"}}
	require.NoError(t, scanned.Scan(nil))
	assert.Nil(t, scanned)
}
