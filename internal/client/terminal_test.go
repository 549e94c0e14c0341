package client

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 端末ではないファイル記述子。パスワードも通常の行として読む。
const notATerminal = -1

func TestTerminal_Fill_Login(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(strings.NewReader("a@b.com\npw1\n"), &out, notATerminal)
	form := NewForm(FormDeps{})

	require.NoError(t, term.Fill(form))
	assert.Equal(t, LoginDraft{Email: "a@b.com", Password: "pw1"}, form.Draft())
	assert.Contains(t, out.String(), "Email: ")
	assert.Contains(t, out.String(), "Password: ")
}

func TestTerminal_Fill_RegisterWithPicture(t *testing.T) {
	pic := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(pic, []byte("png"), 0o600))

	input := strings.Join([]string{"A", "B", "X", "Y", "a@b.com", "pw1", pic}, "\n")
	var out bytes.Buffer
	term := NewTerminal(strings.NewReader(input), &out, notATerminal)
	form := NewForm(FormDeps{})
	form.Toggle()

	require.NoError(t, term.Fill(form))

	d, ok := form.Draft().(RegisterDraft)
	require.True(t, ok)
	assert.Equal(t, "A", d.FirstName)
	assert.Equal(t, "Y", d.Occupation)
	assert.Equal(t, "pw1", d.Password)
	require.NotNil(t, d.Picture)
	assert.Equal(t, "me.png", d.Picture.Name)
	assert.Equal(t, []byte("png"), d.Picture.Data)
}

func TestTerminal_Fill_RegisterMissingPictureFile(t *testing.T) {
	input := "A\nB\nX\nY\na@b.com\npw1\n/does/not/exist.png\n"
	term := NewTerminal(strings.NewReader(input), &bytes.Buffer{}, notATerminal)
	form := NewForm(FormDeps{})
	form.Toggle()

	assert.Error(t, term.Fill(form))
}

func TestTerminal_Fill_EmptyInput(t *testing.T) {
	term := NewTerminal(strings.NewReader(""), &bytes.Buffer{}, notATerminal)
	assert.Error(t, term.Fill(NewForm(FormDeps{})))
}

func TestTerminal_NotifyAndNavigate(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(strings.NewReader(""), &out, notATerminal)

	term.Notify("Login failed (400).")
	term.Navigate(HomePath)
	term.ShowErrors(FieldErrors{"email": MsgInvalidEmail})

	assert.Equal(t, "! Login failed (400).\n-> /home\n  email: invalid email\n", out.String())
}
