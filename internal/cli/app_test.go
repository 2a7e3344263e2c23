package cli

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
	"github.com/dmitrijs2005/seqsubmit/internal/server/services"
)

type fakeUsers struct {
	created [][2]string
	reply   services.Reply
	list    []models.UserSummary
}

func (f *fakeUsers) CreateAdmin(ctx context.Context, email, password string) (services.Reply, error) {
	f.created = append(f.created, [2]string{email, password})
	return f.reply, nil
}

func (f *fakeUsers) List(ctx context.Context) ([]models.UserSummary, error) {
	return f.list, nil
}

func stubPasswords(t *testing.T, passwords ...string) {
	t.Helper()
	old := readPassword
	t.Cleanup(func() { readPassword = old })
	readPassword = func(int) ([]byte, error) {
		pw := passwords[0]
		passwords = passwords[1:]
		return []byte(pw), nil
	}
}

func TestCreateAdmin_WithFlag(t *testing.T) {
	stubPasswords(t, "adminPass1", "adminPass1")
	users := &fakeUsers{reply: services.Reply{Code: http.StatusOK}}
	var out bytes.Buffer
	app := NewApp(users, strings.NewReader(""), &out)

	err := app.Run(context.Background(), []string{"create-admin", "-d", "postgres://x", "-email", "admin@embl.de"})
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"admin@embl.de", "adminPass1"}}, users.created)
	assert.Contains(t, out.String(), "Admin account admin@embl.de created")
}

func TestCreateAdmin_PromptsForEmail(t *testing.T) {
	stubPasswords(t, "adminPass1", "adminPass1")
	users := &fakeUsers{reply: services.Reply{Code: http.StatusOK}}
	var out bytes.Buffer
	app := NewApp(users, strings.NewReader("admin@embl.de\n"), &out)

	require.NoError(t, app.Run(context.Background(), []string{"create-admin"}))
	require.Len(t, users.created, 1)
	assert.Equal(t, "admin@embl.de", users.created[0][0])
}

func TestCreateAdmin_PasswordMismatch(t *testing.T) {
	stubPasswords(t, "adminPass1", "adminPass2")
	users := &fakeUsers{}
	app := NewApp(users, strings.NewReader(""), &bytes.Buffer{})

	err := app.Run(context.Background(), []string{"create-admin", "-email", "admin@embl.de"})
	require.ErrorIs(t, err, ErrPasswordMismatch)
	assert.Empty(t, users.created)
}

func TestCreateAdmin_Rejected(t *testing.T) {
	stubPasswords(t, "weak", "weak")
	users := &fakeUsers{reply: services.Reply{Message: "Password must contain at least 8 characters", Code: http.StatusUnauthorized}}
	app := NewApp(users, strings.NewReader(""), &bytes.Buffer{})

	err := app.Run(context.Background(), []string{"create-admin", "-email", "admin@embl.de"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Password must contain")
}

func TestListUsers(t *testing.T) {
	users := &fakeUsers{list: []models.UserSummary{
		{Email: "admin@embl.de", IsAdmin: true, Activated: true},
		{Email: "joe@embl.de"},
	}}
	var out bytes.Buffer
	app := NewApp(users, strings.NewReader(""), &out)

	require.NoError(t, app.Run(context.Background(), []string{"list-users"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"EMAIL", "ADMIN", "ACTIVATED"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"admin@embl.de", "true", "true"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"joe@embl.de", "false", "false"}, strings.Fields(lines[2]))
}

func TestRun_Usage(t *testing.T) {
	app := NewApp(&fakeUsers{}, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, app.Run(context.Background(), nil), ErrUsage)
	assert.ErrorIs(t, app.Run(context.Background(), []string{"frobnicate"}), ErrUsage)
}
