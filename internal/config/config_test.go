package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bread-widget/internal/integrations/paramstore"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BREAD_API_URL", "http://127.0.0.1:8000")
	t.Setenv("ADDR", "")
	t.Setenv("START_PATH", "")
	t.Setenv("TURN_PATH", "")
	t.Setenv("LANGUAGE", "")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("PAGE_TTL_MINUTES", "")
	t.Setenv("PARAM_PREFIX", "/bread-widget/")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, "http://127.0.0.1:8000", cfg.BreadAPIURL)
	require.Equal(t, "/start/", cfg.StartPath)
	require.Equal(t, "/bread", cfg.TurnPath)
	require.Equal(t, "en", cfg.Language)
	require.Equal(t, "/bread-widget", cfg.ParamPrefix)
	require.Zero(t, cfg.RequestTimeout)
	require.Equal(t, 2*time.Hour, cfg.PageTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BREAD_API_URL", "https://bread.example.com")
	t.Setenv("REQUEST_TIMEOUT", "15")
	t.Setenv("PAGE_TTL_MINUTES", "30")
	t.Setenv("LANGUAGE", "it")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 15*time.Second, cfg.RequestTimeout)
	require.Equal(t, 30*time.Minute, cfg.PageTTL)
	require.Equal(t, "it", cfg.Language)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("BREAD_API_URL", "")
	_, err := Load()
	require.ErrorContains(t, err, "BREAD_API_URL")

	t.Setenv("BREAD_API_URL", "http://127.0.0.1:8000")
	t.Setenv("PAGE_TTL_MINUTES", "0")
	_, err = Load()
	require.ErrorContains(t, err, "PAGE_TTL_MINUTES")

	t.Setenv("PAGE_TTL_MINUTES", "")
	t.Setenv("REQUEST_TIMEOUT", "-1")
	_, err = Load()
	require.ErrorContains(t, err, "REQUEST_TIMEOUT")
}

func TestEnvInt_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	require.Equal(t, 7, envInt("SOME_INT", 7))
}

type fakeJSONGetter struct {
	val  string
	err  error
	name string
}

func (f *fakeJSONGetter) GetJSON(_ context.Context, name string, out any) error {
	f.name = name
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.val), out)
}

func TestLoadCopy_NoPrefixUsesDefaults(t *testing.T) {
	c, err := LoadCopy(context.Background(), &fakeJSONGetter{}, "")
	require.NoError(t, err)
	require.Equal(t, DefaultCopy(), c)

	c, err = LoadCopy(context.Background(), nil, "/bread-widget")
	require.NoError(t, err)
	require.Equal(t, DefaultCopy(), c)
}

func TestLoadCopy_MergesOverride(t *testing.T) {
	g := &fakeJSONGetter{val: `{"fallback_error":"Something went wrong.","note_fields":[{"key":"storage_tips","heading":"Keeping It Fresh"}]}`}
	c, err := LoadCopy(context.Background(), g, "/bread-widget")
	require.NoError(t, err)
	require.Equal(t, "/bread-widget/widget_copy", g.name)
	require.Equal(t, "Something went wrong.", c.FallbackError)
	require.Equal(t, DefaultCopy().Intro, c.Intro)
	require.Equal(t, []NoteField{{Key: "storage_tips", Heading: "Keeping It Fresh"}}, c.NoteFields)
}

func TestLoadCopy_MissingParameter(t *testing.T) {
	g := &fakeJSONGetter{err: fmt.Errorf("%w: %q", paramstore.ErrNotFound, "/bread-widget/widget_copy")}
	c, err := LoadCopy(context.Background(), g, "/bread-widget")
	require.NoError(t, err)
	require.Equal(t, DefaultCopy(), c)
}

func TestLoadCopy_FailureReturnsDefaults(t *testing.T) {
	g := &fakeJSONGetter{err: errors.New("ssm unavailable")}
	c, err := LoadCopy(context.Background(), g, "/bread-widget")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm unavailable")
	require.Equal(t, DefaultCopy(), c)
}

func TestCopyMerge_IgnoresIncompleteNoteFields(t *testing.T) {
	c := DefaultCopy().Merge(Copy{NoteFields: []NoteField{{Key: "storage_tips"}}})
	require.Equal(t, DefaultCopy().NoteFields, c.NoteFields)
}
