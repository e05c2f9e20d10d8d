package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBuildPublicIDStripsExtensionAndSymbols(t *testing.T) {
	first := buildPublicID("final report (v2).pdf")
	require.Regexp(t, `^final-report--v2-[0-9a-f]{12}$`, first)
	require.NotEqual(t, first, buildPublicID("final report (v2).pdf"))
	require.Regexp(t, `^document-[0-9a-f]{12}$`, buildPublicID("###.docx"))
}

func TestPathHelpers(t *testing.T) {
	storage, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/projtrack/"}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "projtrack", storage.folder)

	require.Equal(t, "https://res.cloudinary.com/demo/raw/upload/projtrack/report-1", storage.PublicURL("raw/projtrack/report-1"))
	require.Empty(t, storage.PublicURL("no-resource-type"))

	resourceType, publicID, err := splitPath("image/projtrack/cover")
	require.NoError(t, err)
	require.Equal(t, "image", resourceType)
	require.Equal(t, "projtrack/cover", publicID)

	_, _, err = splitPath("raw/")
	require.Error(t, err)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}
