package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const autoCaptionVTT = `WEBVTT
Kind: captions
Language: en

00:00:00.000 --> 00:00:02.000 align:start position:0%
 
hello<00:00:00.500><c> world</c>

00:00:02.000 --> 00:00:02.010 align:start position:0%
hello world


00:00:02.010 --> 00:00:04.000 align:start position:0%
hello world
[Music]

00:00:04.000 --> 00:00:06.500 align:start position:0%
[Music]
this<00:00:04.300><c> is</c><00:00:04.600><c> a</c> test

00:00:06.500 --> 00:00:08.000
<i>the end</i>
`

func TestParseVTT_AutoCaptions(t *testing.T) {
	cues, err := ParseVTT(autoCaptionVTT)
	require.NoError(t, err)

	require.Len(t, cues, 3)
	assert.Equal(t, Cue{Start: 0, End: 2, Text: "hello world"}, cues[0])
	assert.Equal(t, Cue{Start: 4, End: 6.5, Text: "this is a test"}, cues[1])
	assert.Equal(t, Cue{Start: 6.5, End: 8, Text: "the end"}, cues[2])

	assert.Equal(t, "hello world this is a test the end", PlainText(cues))
}

func TestParseVTT_ManualCaptions(t *testing.T) {
	content := "\ufeffWEBVTT\r\n\r\n1\r\n01:02:03.500 --> 01:02:05.000\r\nFirst line\r\nsecond line\r\n\r\n2\r\n01:02:05.000 --> 01:02:07.000\r\nThird\r\n"

	cues, err := ParseVTT(content)
	require.NoError(t, err)
	require.Len(t, cues, 2)
	assert.InDelta(t, 3723.5, cues[0].Start, 0.0001)
	assert.Equal(t, "First line second line", cues[0].Text)
	assert.Equal(t, "Third", cues[1].Text)
}

func TestParseVTT_NotVTT(t *testing.T) {
	_, err := ParseVTT("1\n00:00:01,000 --> 00:00:02,000\nsrt text\n")
	assert.Error(t, err)
}

func TestParseVTTTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"00:00:01.500", 1.5, false},
		{"01:00:00.000", 3600, false},
		{"02:03.250", 123.25, false},
		{"00:00:01,500", 1.5, false},
		{"abc", 0, true},
		{"1:2:3:4", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseVTTTimestamp(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}
