package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey     = "35240814200166000196650010000123451234567890"
	testBaseURL = "https://www.nfce.fazenda.sp.gov.br"
	testPayload = testKey + "|2|1|1|ABCDEF1234567890ABCDEF1234567890ABCDEF12"
)

func TestResolveAccessKey_BareKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"plain digits", testKey},
		{"with spaces", "3524 0814 2001 6600 0196 6500 1000 0123 4512 3456 7890"},
		{"with separators", "3524-0814.2001/6600.0196-6500.1000-0123.4512-3456.7890"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ResolveAccessKey(tt.input)
			require.NoError(t, err)
			assert.Equal(t, testKey, key)
		})
	}
}

func TestResolveAccessKey_QRCodeURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			"full consultation URL",
			testBaseURL + ConsultPath + "?p=" + testPayload,
		},
		{
			"key-only p parameter",
			testBaseURL + ConsultPath + "?p=" + testKey,
		},
		{
			"p parameter with trailing query",
			testBaseURL + ConsultPath + "?p=" + testPayload + "&foo=bar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ResolveAccessKey(tt.input)
			require.NoError(t, err)
			assert.Equal(t, testKey, key)
		})
	}
}

func TestResolveAccessKey_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too short", "123456"},
		{"45 digits", testKey + "0"},
		{"url without p", testBaseURL + ConsultPath + "?q=12345"},
		{"p with short key", testBaseURL + ConsultPath + "?p=12345|2|1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveAccessKey(tt.input)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindInvalidAccessKey))
		})
	}
}

func TestBuildConsultURL_ForwardsOriginalQuery(t *testing.T) {
	original := testBaseURL + ConsultPath + "?p=" + testPayload
	got := BuildConsultURL(testBaseURL, testKey, original)
	assert.Equal(t, testBaseURL+ConsultPath+"?p="+testPayload, got)
}

func TestBuildConsultURL_PipePayloadWithoutURL(t *testing.T) {
	got := BuildConsultURL(testBaseURL, testKey, testPayload)
	assert.Equal(t, testBaseURL+ConsultPath+"?p="+testPayload, got)
}

func TestBuildConsultURL_BareKeyFallback(t *testing.T) {
	got := BuildConsultURL(testBaseURL, testKey, testKey)
	assert.Equal(t, testBaseURL+ConsultPath+"?p="+testKey, got)
}

func TestBuildConsultURL_TrimsTrailingSlash(t *testing.T) {
	got := BuildConsultURL(testBaseURL+"/", testKey, testKey)
	assert.Equal(t, testBaseURL+ConsultPath+"?p="+testKey, got)
}

// resolving a key and building its URL must be stable under re-resolution:
// feeding the built URL back through the resolver yields the same key
func TestResolveThenBuild_Idempotent(t *testing.T) {
	inputs := []string{
		testKey,
		testBaseURL + ConsultPath + "?p=" + testPayload,
		testPayload,
	}

	for _, input := range inputs {
		key, err := ResolveAccessKey(input)
		require.NoError(t, err)

		url := BuildConsultURL(testBaseURL, key, input)
		again, err := ResolveAccessKey(url)
		require.NoError(t, err)
		assert.Equal(t, key, again)
	}
}
