package httpclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractParamsScriptFindsBlock(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head></head><body>
		<script id="params" type="application/json">{"rawsps":"abc"}</script>
	</body></html>`)

	content, err := ExtractParamsScript(body)
	require.NoError(t, err)
	assert.Equal(t, `{"rawsps":"abc"}`, content)
}

func TestExtractParamsScriptAttributeOrderInsensitive(t *testing.T) {
	t.Parallel()

	body := []byte(`<script type="application/json" id="params">{"rawp":"xyz"}</script>`)

	content, err := ExtractParamsScript(body)
	require.NoError(t, err)
	assert.Equal(t, `{"rawp":"xyz"}`, content)
}

func TestExtractParamsScriptMissing(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body><p>no params here</p></body></html>`)

	_, err := ExtractParamsScript(body)
	require.Error(t, err)
}

func TestExtractParamsScriptIgnoresOtherScripts(t *testing.T) {
	t.Parallel()

	body := []byte(`<script id="analytics">window.ga=1;</script>
		<script id="params" type="application/json">{"ok":true}</script>`)

	content, err := ExtractParamsScript(body)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, content)
}
