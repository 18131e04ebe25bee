package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestWriter_WriteCheckbook(t *testing.T) {
	dir := t.TempDir()
	viper.Set("render.output_dir", dir)
	defer viper.Set("render.output_dir", nil)

	writer, err := NewWriter()
	assert.NoError(t, err)

	data := BuildCheckbook(CheckbookInput{
		Reference:     "test-ref",
		AccountNumber: "1000245879",
		HolderName:    "Jane Customer",
		AccountType:   1,
		BranchName:    "Main Branch",
		RoutingNumber: "123456789",
		FirstSerial:   101,
		LastSerial:    103,
	})

	path, err := writer.WriteCheckbook(data)
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "test-ref.html"), path)

	content, err := os.ReadFile(path)
	assert.NoError(t, err)

	html := string(content)
	assert.True(t, strings.Contains(html, "Main Branch"))
	assert.True(t, strings.Contains(html, "00000101"))
	assert.True(t, strings.Contains(html, "00000103"))
	assert.True(t, strings.Contains(html, "data:image/png;base64,"))
	assert.True(t, strings.Contains(html, "⑆123456789⑆"))
}
