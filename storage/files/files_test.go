package files

import (
	"context"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\notes v2.docx`, "notes_v2.docx"},
		{"  ", "file"},
		{"..", "file"},
		{"résumé (final).pdf", "r_sum_final_.pdf"},
		{strings.Repeat("a", 150) + ".txt", strings.Repeat("a", 96) + ".txt"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeName(tc.name))
		})
	}
}

func TestObjectKey(t *testing.T) {
	origNewKeyID := newKeyID
	newKeyID = func() string { return "0000" }
	defer func() { newKeyID = origNewKeyID }()

	key, err := objectKey(core.FileKindSubmission, "42", "../my essay.pdf")
	require.NoError(t, err)
	assert.Equal(t, "submission/42/0000_my_essay.pdf", key)

	_, err = objectKey("avatar", "42", "a.png")
	assert.Error(t, err)

	_, err = objectKey(core.FileKindMaterial, "../42", "a.png")
	assert.Error(t, err)
}

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	store := NewAfero(afero.NewMemMapFs())

	key, err := store.Store(ctx, core.FileKindMaterial, "c1", core.Upload{
		Name:    "slides.pdf",
		Content: strings.NewReader("hello"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "material/c1/"))
	assert.True(t, strings.HasSuffix(key, "_slides.pdf"))

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := store.Retrieve(ctx, key)
	require.NoError(t, err)
	data, err := ioutil.ReadAll(rc)
	require.NoError(t, err)
	_ = rc.Close()
	assert.Equal(t, "hello", string(data))

	// same name, distinct keys
	key2, err := store.Store(ctx, core.FileKindMaterial, "c1", core.Upload{
		Name:    "slides.pdf",
		Content: strings.NewReader("world"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, key, key2)

	require.NoError(t, store.Delete(ctx, key))
	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Retrieve(ctx, key)
	assert.True(t, core.IsNotFound(err))
	assert.True(t, core.IsNotFound(store.Delete(ctx, key)))

	_, err = store.Retrieve(ctx, "../outside")
	assert.True(t, core.IsNotFound(err))
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()

	conf.Storage.Backend = core.FileBackendLocal
	conf.Storage.LocalRoot = t.TempDir()
	store, err := New(context.Background(), conf)
	require.NoError(t, err)
	assert.IsType(t, &localStorage{}, store)

	conf.Storage.Backend = "ftp"
	_, err = New(context.Background(), conf)
	assert.Error(t, err)
}
