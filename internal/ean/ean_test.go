package ean

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveLeadingZeros(t *testing.T) {
	assert.Equal(t, "630870296793", RemoveLeadingZeros("0630870296793"))
	assert.Equal(t, "12", RemoveLeadingZeros("0012"))
	assert.Equal(t, "12", RemoveLeadingZeros("12"))
	assert.Equal(t, "0", RemoveLeadingZeros("0000"))
	assert.Equal(t, "0", RemoveLeadingZeros("0"))
	assert.Equal(t, "", RemoveLeadingZeros(""))
}

func TestRemoveLeadingZerosIdempotent(t *testing.T) {
	for _, value := range []string{"0630870296793", "0000", "12", "000120"} {
		once := RemoveLeadingZeros(value)
		assert.Equal(t, once, RemoveLeadingZeros(once), "input %q", value)
	}
}

func TestIsValid(t *testing.T) {
	// Valid only at exactly 12 or 13 digits.
	assert.True(t, IsValid("630870296793"))
	assert.True(t, IsValid("5012345678900"))
	assert.False(t, IsValid("12345678901"))
	assert.False(t, IsValid("12345678901234"))
	assert.False(t, IsValid("63087029679a"))
	assert.False(t, IsValid(""))
}

func TestExtractFromFilename(t *testing.T) {
	extraction, ok := ExtractFromFilename("630870296793-3.jpg")
	require.True(t, ok)
	assert.Equal(t, Extraction{EAN: "630870296793", Number: "3", Format: FormatHyphen}, extraction)

	extraction, ok = ExtractFromFilename("5012345678900.png")
	require.True(t, ok)
	assert.Equal(t, Extraction{EAN: "5012345678900", Format: FormatEANOnly}, extraction)

	for _, name := range []string{
		"IMG_4412.jpg",
		"630870296793x.png",
		"12345678901.png",
		"photo-630870296793.png",
		"630870296793-.png",
		"630870296793-12.backup.png",
	} {
		_, ok := ExtractFromFilename(name)
		assert.False(t, ok, "expected no extraction for %q", name)
	}
}

func TestPreviewRenamesSequencing(t *testing.T) {
	previews := PreviewRenames(
		[]string{"0630870296793-1.jpg", "0630870296793-2.jpg"},
		PreviewOptions{RemoveLeadingZeros: true},
	)

	require.Len(t, previews, 2)
	assert.Equal(t, "630870296793-1.jpg", previews[0].NewName)
	assert.Equal(t, "630870296793-2.jpg", previews[1].NewName)
	for _, p := range previews {
		assert.Equal(t, "630870296793", p.EAN)
		assert.Equal(t, StatusWillRename, p.Status)
		assert.Equal(t, MethodPattern, p.ExtractionMethod)
	}
}

func TestPreviewRenamesKeepOriginal(t *testing.T) {
	previews := PreviewRenames([]string{"630870296793-1.jpg"}, PreviewOptions{})

	require.Len(t, previews, 1)
	assert.Equal(t, StatusKeepOriginal, previews[0].Status)
	assert.Equal(t, "630870296793-1.jpg", previews[0].NewName)
}

func TestPreviewRenamesAINumbersAfterPatternFiles(t *testing.T) {
	previews := PreviewRenames(
		[]string{"630870296793-1.jpg", "630870296793-2.jpg", "IMG_0001.jpg", "IMG_0002.jpg"},
		PreviewOptions{
			AIResults: []AIResult{
				{}, {},
				{EAN: "630870296793", Confidence: 0.9},
				{EAN: "630870296793", Confidence: 0.8},
			},
		},
	)

	require.Len(t, previews, 4)
	assert.Equal(t, "630870296793-3.jpg", previews[2].NewName)
	assert.Equal(t, MethodAI, previews[2].ExtractionMethod)
	assert.InDelta(t, 0.9, previews[2].Confidence, 1e-9)
	assert.Equal(t, "630870296793-4.jpg", previews[3].NewName)
	assert.Equal(t, StatusWillRename, previews[3].Status)
}

func TestPreviewRenamesLowConfidenceAIDiscarded(t *testing.T) {
	previews := PreviewRenames(
		[]string{"IMG_4412.jpg"},
		PreviewOptions{AIResults: []AIResult{{EAN: "5012345678900", Confidence: 0.3}}},
	)

	require.Len(t, previews, 1)
	p := previews[0]
	assert.Empty(t, p.EAN)
	assert.Equal(t, StatusKeepOriginal, p.Status)
	assert.Equal(t, "IMG_4412.jpg", p.NewName)
	assert.Equal(t, MethodAI, p.ExtractionMethod)
	assert.InDelta(t, 0.3, p.Confidence, 1e-9)
}

func TestPreviewRenamesNoPatternNoAI(t *testing.T) {
	previews := PreviewRenames([]string{"holiday.jpg", ""}, PreviewOptions{})

	require.Len(t, previews, 2)
	for _, p := range previews {
		assert.Equal(t, StatusKeepOriginal, p.Status)
		assert.Empty(t, p.EAN)
		assert.Equal(t, p.OriginalName, p.NewName)
	}
}

func TestPreviewRenamesEmptyBatch(t *testing.T) {
	assert.Empty(t, PreviewRenames(nil, PreviewOptions{}))
}

func TestPreviewRenamesFirstAIFileStartsAtOne(t *testing.T) {
	previews := PreviewRenames(
		[]string{"IMG_1.jpg"},
		PreviewOptions{AIResults: []AIResult{{EAN: "0630870296793", Confidence: 0.95}}, RemoveLeadingZeros: true},
	)

	require.Len(t, previews, 1)
	assert.Equal(t, "630870296793-1.jpg", previews[0].NewName)
	assert.Equal(t, "630870296793", previews[0].EAN)
}

func TestPlanRenames(t *testing.T) {
	files := []File{
		{OriginalName: "0630870296793.png", Data: []byte("a")},
		{OriginalName: "snapshot.png", Data: []byte("b")},
	}

	renames := PlanRenames(files, PreviewOptions{RemoveLeadingZeros: true})

	require.Len(t, renames, 2)
	assert.Equal(t, "630870296793.png", renames[0].NewName)
	assert.True(t, renames[0].Success)
	assert.Equal(t, []byte("a"), renames[0].Data)

	assert.Equal(t, "snapshot.png", renames[1].NewName)
	assert.False(t, renames[1].Success)
	assert.Equal(t, []byte("b"), renames[1].Data)
}
